package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/s3ba-b/SVM-for-Classification/internal/evaluation"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the only payload layout Load accepts.
const FormatVersion uint16 = 1

// header: magic, version, CRC-32 of the payload, payload length
const headerSize = 8 + 2 + 4 + 4

var magic = [8]byte{'W', 'Q', 'M', 'O', 'D', 'E', 'L', 0}

type ModelBundle struct {
	Model    *models.Model
	Metadata BundleMetadata
}

type BundleMetadata struct {
	ID        string              `msgpack:"id" yaml:"id"`
	CreatedAt time.Time           `msgpack:"createdAt" yaml:"createdAt"`
	Dataset   string              `msgpack:"dataset" yaml:"dataset,omitempty"`
	Trainer   TrainerInfo         `msgpack:"trainer" yaml:"trainer"`
	Metrics   *evaluation.Metrics `msgpack:"metrics,omitempty" yaml:"metrics,omitempty"`
}

type TrainerInfo struct {
	Name      string  `msgpack:"name" yaml:"name"`
	L2        float64 `msgpack:"l2" yaml:"l2"`
	MaxEpochs int     `msgpack:"maxEpochs" yaml:"maxEpochs"`
	Tolerance float64 `msgpack:"tolerance" yaml:"tolerance"`
	Seed      int64   `msgpack:"seed" yaml:"seed"`
	Epochs    int     `msgpack:"epochs" yaml:"epochs"`
	Gap       float64 `msgpack:"gap" yaml:"gap"`
	Converged bool    `msgpack:"converged" yaml:"converged"`
}

type normalizerDoc struct {
	Kind   string    `msgpack:"kind"`
	Offset []float32 `msgpack:"offset"`
	Scale  []float32 `msgpack:"scale"`
}

type payload struct {
	Version    uint16         `msgpack:"version"`
	Features   []string       `msgpack:"features"`
	Labels     []string       `msgpack:"labels"`
	Weights    [][]float32    `msgpack:"weights"`
	Biases     []float32      `msgpack:"biases"`
	Normalizer *normalizerDoc `msgpack:"normalizer"`
	BundleMetadata `msgpack:",inline"`
}

func NewModelBundle(model *models.Model) *ModelBundle {
	return &ModelBundle{
		Model: model,
		Metadata: BundleMetadata{
			ID:        uuid.New().String(),
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		},
	}
}

// Encode serializes the bundle into the on-disk format.
func (mb *ModelBundle) Encode() ([]byte, error) {
	if err := mb.Model.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save invalid model: %w", err)
	}
	doc := payload{
		Version:        FormatVersion,
		Features:       mb.Model.Features,
		Labels:         mb.Model.Labels.Labels(),
		Weights:        mb.Model.Weights,
		Biases:         mb.Model.Biases,
		BundleMetadata: mb.Metadata,
	}
	if n := mb.Model.Normalizer; n != nil {
		doc.Normalizer = &normalizerDoc{Kind: string(n.Kind), Offset: n.Offset, Scale: n.Scale}
	}

	var body bytes.Buffer
	enc := msgpack.NewEncoder(&body)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}

	buf := make([]byte, headerSize, headerSize+body.Len())
	copy(buf, magic[:])
	binary.LittleEndian.PutUint16(buf[8:], FormatVersion)
	binary.LittleEndian.PutUint32(buf[10:], crc32.ChecksumIEEE(body.Bytes()))
	binary.LittleEndian.PutUint32(buf[14:], uint32(body.Len()))
	return append(buf, body.Bytes()...), nil
}

// Save writes the bundle next to filename and renames it into place, so a
// failed write never leaves a truncated model behind.
func (mb *ModelBundle) Save(filename string) (err error) {
	raw, err := mb.Encode()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return mlerr.Wrap(mlerr.KindIO, "save model", err)
		}
	}

	tmp := filename + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return mlerr.Wrap(mlerr.KindIO, "save model", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	_, werr := file.Write(raw)
	werr = multierr.Append(werr, file.Sync())
	werr = multierr.Append(werr, file.Close())
	if werr != nil {
		return &mlerr.Error{Kind: mlerr.KindIO, Op: "save model", Path: filename, Err: werr}
	}
	if err = os.Rename(tmp, filename); err != nil {
		return &mlerr.Error{Kind: mlerr.KindIO, Op: "save model", Path: filename, Err: err}
	}

	log.Debug().
		Str("path", filename).
		Str("id", mb.Metadata.ID).
		Int("bytes", len(raw)).
		Msg("model saved")
	return nil
}

func LoadModelBundle(filename string) (*ModelBundle, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &mlerr.Error{Kind: mlerr.KindNotFound, Op: "load model", Path: filename, Err: err}
		}
		return nil, &mlerr.Error{Kind: mlerr.KindIO, Op: "load model", Path: filename, Err: err}
	}
	mb, err := DecodeModelBundle(raw)
	if err != nil {
		var me *mlerr.Error
		if errors.As(err, &me) {
			me.Path = filename
		}
		return nil, err
	}
	return mb, nil
}

func corrupt(format string, args ...any) error {
	return mlerr.Newf(mlerr.KindCorruptModel, "load model", format, args...)
}

// DecodeModelBundle parses and checks a serialized bundle. Every failure is
// reported as a corrupt model.
func DecodeModelBundle(raw []byte) (*ModelBundle, error) {
	if len(raw) < headerSize {
		return nil, corrupt("file has %d bytes, header needs %d", len(raw), headerSize)
	}
	if !bytes.Equal(raw[:8], magic[:]) {
		return nil, corrupt("bad magic %q", raw[:8])
	}
	if v := binary.LittleEndian.Uint16(raw[8:]); v != FormatVersion {
		return nil, corrupt("unsupported format version %d", v)
	}
	sum := binary.LittleEndian.Uint32(raw[10:])
	size := binary.LittleEndian.Uint32(raw[14:])
	body := raw[headerSize:]
	if uint64(size) != uint64(len(body)) {
		return nil, corrupt("payload length %d, header says %d", len(body), size)
	}
	if got := crc32.ChecksumIEEE(body); got != sum {
		return nil, corrupt("checksum mismatch: %08x != %08x", got, sum)
	}

	var doc payload
	dec := msgpack.NewDecoder(bytes.NewReader(body))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&doc); err != nil {
		return nil, &mlerr.Error{Kind: mlerr.KindCorruptModel, Op: "load model", Msg: "undecodable payload", Err: err}
	}
	if doc.Version != FormatVersion {
		return nil, corrupt("payload version %d", doc.Version)
	}

	keys, err := preprocessing.NewLabelKeyMap(doc.Labels)
	if err != nil {
		return nil, &mlerr.Error{Kind: mlerr.KindCorruptModel, Op: "load model", Err: err}
	}
	model := &models.Model{
		Weights:  doc.Weights,
		Biases:   doc.Biases,
		Labels:   keys,
		Features: doc.Features,
	}
	if n := doc.Normalizer; n != nil {
		model.Normalizer = &preprocessing.Normalizer{
			Kind:   preprocessing.NormalizerKind(n.Kind),
			Offset: n.Offset,
			Scale:  n.Scale,
		}
	}
	if err := model.Validate(); err != nil {
		return nil, &mlerr.Error{Kind: mlerr.KindCorruptModel, Op: "load model", Err: err}
	}

	return &ModelBundle{Model: model, Metadata: doc.BundleMetadata}, nil
}

// SaveMetadata writes a human readable YAML summary of the bundle.
func (mb *ModelBundle) SaveMetadata(filename string) error {
	summary := struct {
		BundleMetadata `yaml:",inline"`
		Features       []string `yaml:"features"`
		Labels         []string `yaml:"labels"`
		Normalization  string   `yaml:"normalization"`
	}{
		BundleMetadata: mb.Metadata,
		Features:       mb.Model.Features,
		Labels:         mb.Model.Labels.Labels(),
		Normalization:  string(preprocessing.NormalizeNone),
	}
	if mb.Model.Normalizer != nil {
		summary.Normalization = string(mb.Model.Normalizer.Kind)
	}

	raw, err := yaml.Marshal(&summary)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, raw, 0o644); err != nil {
		return &mlerr.Error{Kind: mlerr.KindIO, Op: "save metadata", Path: filename, Err: err}
	}
	return nil
}
