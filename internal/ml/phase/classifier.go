package phase

import (
	"context"
	"math"

	"delphi/internal/domain/marketdata"
	"delphi/internal/ml"
	taphase "delphi/internal/ta/phase"
	"delphi/pkg/errors"
)

// classes is the model's training label order
var classes = []string{
	string(taphase.PhaseAccumulation),
	string(taphase.PhaseMarkup),
	string(taphase.PhaseDistribution),
	string(taphase.PhaseMarkdown),
	string(taphase.PhaseTransition),
}

// Classifier predicts the market cycle phase with an ONNX model
type Classifier struct {
	model *ml.ONNXModel
}

// NewClassifier loads the phase model from disk
func NewClassifier(modelPath string) (*Classifier, error) {
	model, err := ml.LoadONNXModel(modelPath, classes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load phase model")
	}
	return &Classifier{model: model}, nil
}

// Classify extracts engine features from the series and runs inference.
// The result mirrors the rule-based classifier: probabilities become
// scores on its ten point scale, the margin is winner minus runner-up.
func (c *Classifier) Classify(_ context.Context, s *marketdata.Series) (*taphase.Result, error) {
	if c.model == nil {
		return nil, errors.New("phase model is not loaded")
	}

	features, err := ExtractFeatures(s)
	if err != nil {
		return nil, err
	}

	label, probabilities, err := c.model.Predict(features.Vector())
	if err != nil {
		return nil, errors.Wrap(err, "phase inference failed")
	}

	top, second := topTwoProbabilities(probabilities)
	ph := taphase.Phase(label)

	return &taphase.Result{
		Symbol:     s.Symbol,
		Phase:      ph,
		Strength:   round1(top * 10),
		Margin:     round1((top - second) * 10),
		Confidence: confidenceFor(top),
		Scores: taphase.Scores{
			Accumulation: round1(probabilities[string(taphase.PhaseAccumulation)] * 10),
			Markup:       round1(probabilities[string(taphase.PhaseMarkup)] * 10),
			Distribution: round1(probabilities[string(taphase.PhaseDistribution)] * 10),
			Markdown:     round1(probabilities[string(taphase.PhaseMarkdown)] * 10),
		},
		PriceAction: taphase.PriceAction{
			TrendPct: round2(features.TrendPct),
			MASlope:  round2(features.MASlope),
			AboveMA:  features.AboveMA == 1,
		},
		VolumeAction: taphase.VolumeAction{
			TrendPct: round2(features.VolumeTrendPct),
		},
		Window:    features.Window,
		Action:    taphase.ActionFor(ph),
		RiskLevel: taphase.RiskFor(ph),
	}, nil
}

// Close releases the underlying ONNX session
func (c *Classifier) Close() {
	if c.model != nil {
		c.model.Destroy()
		c.model = nil
	}
}

func topTwoProbabilities(probabilities map[string]float64) (float64, float64) {
	top, second := 0.0, 0.0
	for _, p := range probabilities {
		if p > top {
			second = top
			top = p
		} else if p > second {
			second = p
		}
	}
	return top, second
}

func confidenceFor(topProbability float64) string {
	switch {
	case topProbability >= 0.75:
		return taphase.ConfidenceHigh
	case topProbability >= 0.5:
		return taphase.ConfidenceModerate
	default:
		return taphase.ConfidenceLow
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
