package model

// ScoreRecord is a per-symbol scoring document. Scalar dimension scores
// live in top-level `<dimension>_score` fields; composite styles live in
// the nested composite_score sub-document keyed by style name.
type ScoreRecord struct {
	Symbol    string             `bson:"symbol"`
	ScoreDate string             `bson:"score_date"`
	Composite map[string]float64 `bson:"composite_score,omitempty"`
}
