package models

// Record is one generated entity: a mapping of field name to decoded JSON
// value. Values arrive as whatever the model returned (string, float64,
// bool), so key fields are read through jsonutil.FlexibleString.
type Record map[string]any
