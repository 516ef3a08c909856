package phase

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

const testModelPath = "../../../models/phase_classifier.onnx"

func trendingSeries(t *testing.T, n int) *marketdata.Series {
	t.Helper()
	bars := make([]marketdata.Bar, n)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		base := 100.0 + float64(i)*0.5 + 4*math.Sin(float64(i)/6)
		bars[i] = marketdata.Bar{
			Symbol:    "BBCA",
			Interval:  "1d",
			OpenTime:  start.Add(time.Duration(i) * 24 * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * 24 * time.Hour),
			Open:      base - 0.3,
			High:      base + 1.0,
			Low:       base - 1.0,
			Close:     base + 0.3,
			Volume:    1000 + 300*math.Sin(float64(i)/5),
			IsClosed:  true,
		}
	}
	s, err := marketdata.NewSeries("BBCA", "1d", bars)
	if err != nil {
		t.Fatalf("Failed to build series: %v", err)
	}
	return s
}

func TestExtractFeatures(t *testing.T) {
	s := trendingSeries(t, 80)

	features, err := ExtractFeatures(s)
	if err != nil {
		t.Fatalf("Feature extraction failed: %v", err)
	}

	vector := features.Vector()
	if len(vector) != 14 {
		t.Fatalf("Feature vector has %d entries, want 14", len(vector))
	}

	if features.TrendPct <= 0 {
		t.Errorf("Uptrending series should have positive trend, got %f", features.TrendPct)
	}
	if features.AboveMA != 1 {
		t.Errorf("Latest close should sit above its MA, got %f", features.AboveMA)
	}
	if features.RSI < 0 || features.RSI > 100 {
		t.Errorf("RSI out of range: %f", features.RSI)
	}
	if features.UpBarShare != 1 {
		t.Errorf("Every bar closes above its open, up share should be 1, got %f", features.UpBarShare)
	}
	if features.AvgClosePos <= 0.5 {
		t.Errorf("Closes near the highs should put close position above 0.5, got %f", features.AvgClosePos)
	}
	if features.ReturnStd <= 0 {
		t.Errorf("Wavy series should have positive return deviation, got %f", features.ReturnStd)
	}
	if features.Window != statsWindow {
		t.Errorf("Window = %d, want %d", features.Window, statsWindow)
	}

	shares := features.HighVolumeShare + features.LowVolumeShare
	if shares < 0 || shares > 1 {
		t.Errorf("Volume shares outside [0, 1]: %f", shares)
	}
}

func TestExtractFeatures_ShortSeries(t *testing.T) {
	s := trendingSeries(t, minFeatureBars-1)

	if _, err := ExtractFeatures(s); !errors.Is(err, errors.ErrInsufficientData) {
		t.Fatalf("Expected insufficient data error, got %v", err)
	}
}

func TestExtractFeatures_NilSeries(t *testing.T) {
	if _, err := ExtractFeatures(nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("Expected invalid input error, got %v", err)
	}
}

func TestClassifier_Classify(t *testing.T) {
	// Skip if model file doesn't exist
	if _, err := os.Stat(testModelPath); os.IsNotExist(err) {
		t.Skip("Model file not found, skipping test. Train model first using scripts/ml/phase/train_model.py")
	}

	classifier, err := NewClassifier(testModelPath)
	if err != nil {
		t.Fatalf("Failed to load classifier: %v", err)
	}
	defer classifier.Close()

	result, err := classifier.Classify(context.Background(), trendingSeries(t, 120))
	if err != nil {
		t.Fatalf("Classification failed: %v", err)
	}

	if result == nil {
		t.Fatal("Classification result is nil")
	}
	if result.Phase == "" {
		t.Error("Phase is empty")
	}
	if result.Symbol != "BBCA" {
		t.Errorf("Symbol = %q, want BBCA", result.Symbol)
	}
	if result.Strength < 0 || result.Strength > 10 {
		t.Errorf("Strength outside the ten point scale: %f", result.Strength)
	}
	if result.Confidence == "" {
		t.Error("Confidence is empty")
	}
	if result.Action == "" || result.RiskLevel == "" {
		t.Errorf("Action/risk not mapped: %q / %q", result.Action, result.RiskLevel)
	}

	// Scores carry the probability mass on the ten point scale
	sum := result.Scores.Accumulation + result.Scores.Markup +
		result.Scores.Distribution + result.Scores.Markdown
	if sum < 0 || sum > 10.5 {
		t.Errorf("Score mass out of range: %f", sum)
	}

	t.Logf("Classification successful: phase=%s, strength=%.1f, confidence=%s",
		result.Phase, result.Strength, result.Confidence)
}

func TestClassifier_CloseIdempotent(t *testing.T) {
	if _, err := os.Stat(testModelPath); os.IsNotExist(err) {
		t.Skip("Model file not found")
	}

	classifier, err := NewClassifier(testModelPath)
	if err != nil {
		t.Fatalf("Failed to load classifier: %v", err)
	}

	// Close multiple times should not panic
	classifier.Close()
	classifier.Close()
	classifier.Close()
}

func TestConfidenceFor(t *testing.T) {
	cases := []struct {
		probability float64
		want        string
	}{
		{0.9, "high"},
		{0.75, "high"},
		{0.6, "moderate"},
		{0.5, "moderate"},
		{0.4, "low"},
	}
	for _, tc := range cases {
		if got := confidenceFor(tc.probability); got != tc.want {
			t.Errorf("confidenceFor(%.2f) = %q, want %q", tc.probability, got, tc.want)
		}
	}
}
