package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Reasons set by the classifier when the payload does not carry one.
const (
	ReasonRejected          = "rejected_by_model"
	ReasonPlantNotDetected  = "plant_not_detected"
	ReasonMissingPrediction = "missing_prediction"
	ReasonInvalidConfidence = "invalid_confidence"
	ReasonModelUnsure       = "model_unsure"
	ReasonLowConfidence     = "low_confidence"
	ReasonMalformedLabel    = "malformed_label"
	ReasonPredictorError    = "predictor_error"
)

// LabelSeparator splits "<Plant>___<Disease>".
const LabelSeparator = "___"

// Payload keys accepted across predictor versions, first match wins.
var (
	keyOK        = []string{"ok", "success"}
	keyReason    = []string{"reason", "message"}
	keyDetected  = []string{"plant_detected", "plantDetected", "is_plant"}
	keyRatio     = []string{"plant_ratio", "plantRatio"}
	keyPredicted = []string{"predicted_key", "predictedKey", "key", "label"}
	keyConf      = []string{"confidence", "score", "prob", "probability"}
	keyUnsure    = []string{"unsure", "is_unsure"}
	keyTop       = []string{"top", "candidates", "alternatives"}
)

// Classifier maps raw predictor output to an Outcome. The zero value accepts
// any confidence in [0,1].
type Classifier struct {
	MinConfidence float64
}

// Classify never fails; anything it cannot interpret becomes Unsure.
func (c Classifier) Classify(raw RawResult) Outcome {
	if raw == nil {
		return Outcome{Kind: OutcomeUnsure, Reason: ReasonMissingPrediction}
	}
	candidates := lookupList(raw, keyTop)
	ratio, ratioOK := lookupFloat(raw, keyRatio)
	var ratioPtr *float64
	if ratioOK {
		ratioPtr = &ratio
	}

	// the error text may carry server paths; it is never a reason
	if _, failed := raw.Failure(); failed {
		return Outcome{Kind: OutcomeUnsure, Reason: ReasonPredictorError}
	}
	// explicit rejection
	if ok, found := lookupBool(raw, keyOK); found && !ok {
		return Outcome{Kind: OutcomeRejected, Reason: reasonOr(raw, ReasonRejected), PlantRatio: ratioPtr}
	}
	if detected, found := lookupBool(raw, keyDetected); found && !detected {
		return Outcome{Kind: OutcomeRejected, Reason: reasonOr(raw, ReasonPlantNotDetected), PlantRatio: ratioPtr}
	}

	unsure := func(reason string) Outcome {
		return Outcome{Kind: OutcomeUnsure, Reason: reason, Candidates: candidates, PlantRatio: ratioPtr}
	}

	key, ok := lookupString(raw, keyPredicted)
	if !ok || strings.TrimSpace(key) == "" {
		return unsure(ReasonMissingPrediction)
	}
	conf, ok := lookupFloat(raw, keyConf)
	if !ok || conf < 0 || conf > 1 {
		return unsure(ReasonInvalidConfidence)
	}
	if flag, found := lookupBool(raw, keyUnsure); found && flag {
		return unsure(ReasonModelUnsure)
	}
	if conf < c.MinConfidence {
		return unsure(ReasonLowConfidence)
	}
	plant, disease, healthy, ok := SplitPredictedKey(key)
	if !ok {
		return unsure(ReasonMalformedLabel)
	}
	return Outcome{
		Kind:         OutcomeConfident,
		PredictedKey: key,
		Confidence:   conf,
		PlantName:    plant,
		DiseaseName:  disease,
		IsHealthy:    healthy,
		Candidates:   candidates,
		PlantRatio:   ratioPtr,
	}
}

// SplitPredictedKey decomposes "<Plant>___<Disease>". Everything after the
// first separator is the disease segment. ok is false when either side is
// empty after normalization.
func SplitPredictedKey(key string) (plant, disease string, healthy, ok bool) {
	head, tail, found := strings.Cut(key, LabelSeparator)
	if !found {
		return "", "", false, false
	}
	plant = normalizeName(head)
	disease = normalizeName(tail)
	if plant == "" || disease == "" {
		return "", "", false, false
	}
	healthy = strings.Contains(strings.ToLower(disease), "healthy")
	return plant, disease, healthy, true
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
}

func reasonOr(raw RawResult, def string) string {
	if s, ok := lookupString(raw, keyReason); ok && s != "" {
		return s
	}
	return def
}

func lookup(raw RawResult, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(raw RawResult, keys []string) (string, bool) {
	v, ok := lookup(raw, keys)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupBool(raw RawResult, keys []string) (bool, bool) {
	v, ok := lookup(raw, keys)
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

func lookupFloat(raw RawResult, keys []string) (float64, bool) {
	v, ok := lookup(raw, keys)
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func lookupList(raw RawResult, keys []string) []any {
	v, ok := lookup(raw, keys)
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	return list
}
