package data

// WineFeatures are the eleven physico-chemical columns of the wine quality
// dataset in file order; "quality" follows them as the label.
var WineFeatures = []string{
	"fixedAcidity",
	"volatileAcidity",
	"citricAcid",
	"residualSugar",
	"chlorides",
	"freeSulfurDioxide",
	"totalSulfurDioxide",
	"density",
	"pH",
	"sulphates",
	"alcohol",
}

const WineLabel = "quality"

type Sample struct {
	Name   string
	Record Record
}

func wineSample(name, label string, values ...float32) Sample {
	fields := make(map[string]float32, len(values))
	for i, v := range values {
		fields[WineFeatures[i]] = v
	}
	return Sample{
		Name: name,
		Record: Record{
			Fields:   fields,
			Label:    label,
			HasLabel: true,
			Source:   name,
		},
	}
}

// WineSamples returns three known rows of the white wine dataset.
func WineSamples() []Sample {
	return []Sample{
		// 6;0.21;0.38;0.8;0.02;22;98;0.98941;3.26;0.32;11.8;6
		wineSample("Wine1", "6", 6, 0.21, 0.38, 0.8, 0.02, 22, 98, 0.98941, 3.26, 0.32, 11.8),
		// 5.5;0.29;0.3;1.1;0.022;20;110;0.98869;3.34;0.38;12.8;7
		wineSample("Wine2", "7", 5.5, 0.29, 0.3, 1.1, 0.022, 20, 110, 0.98869, 3.34, 0.38, 12.8),
		// 6.5;0.24;0.19;1.2;0.041;30;111;0.99254;2.99;0.46;9.4;6
		wineSample("Wine3", "6", 6.5, 0.24, 0.19, 1.2, 0.041, 30, 111, 0.99254, 2.99, 0.46, 9.4),
	}
}

// WineSchema is the layout of the semicolon separated wine quality files.
func WineSchema() Schema {
	cols := make([]Column, 0, len(WineFeatures)+1)
	for _, f := range WineFeatures {
		cols = append(cols, Column{Name: f, Type: Numeric})
	}
	cols = append(cols, Column{Name: WineLabel, Type: Numeric})
	return Schema{
		Columns:   cols,
		Label:     WineLabel,
		Delimiter: ';',
		HasHeader: true,
	}
}

// IrisSchema is the layout of the UCI iris file: four measurements and the
// species name, comma separated, no header.
func IrisSchema() Schema {
	return Schema{
		Columns: []Column{
			{Name: "sepalLength", Type: Numeric},
			{Name: "sepalWidth", Type: Numeric},
			{Name: "petalLength", Type: Numeric},
			{Name: "petalWidth", Type: Numeric},
			{Name: "species", Type: String},
		},
		Label:     "species",
		Delimiter: ',',
		HasHeader: false,
	}
}
