// Package ml wraps ONNX Runtime sessions behind a small inference API.
// Models are exported by the training scripts with one float input tensor
// and paired class/probability outputs.
package ml

import (
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"delphi/pkg/errors"
)

// The runtime environment rejects double initialization
var (
	initOnce sync.Once
	initErr  error
)

func initRuntime() error {
	initOnce.Do(func() {
		initErr = onnxruntime.InitializeEnvironment()
	})
	return initErr
}

// ONNXModel holds a loaded classification session and its class labels.
// The label order must match the model's training order.
type ONNXModel struct {
	session *onnxruntime.DynamicAdvancedSession
	classes []string
}

// LoadONNXModel loads a classifier from file. classes maps output indices
// to names; an index outside the list is reported as an error.
func LoadONNXModel(modelPath string, classes []string) (*ONNXModel, error) {
	if len(classes) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no class labels given")
	}

	if err := initRuntime(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"output", "probabilities"}, options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load ONNX model %s", modelPath)
	}

	return &ONNXModel{
		session: session,
		classes: classes,
	}, nil
}

// Predict runs inference on one feature vector and returns the winning
// class with the probability per class.
func (m *ONNXModel) Predict(features []float64) (string, map[string]float64, error) {
	if m.session == nil {
		return "", nil, errors.New("model session is closed")
	}

	inputShape := onnxruntime.NewShape(1, int64(len(features)))
	inputTensor, err := onnxruntime.NewTensor(inputShape, features)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	classOutput := make([]int64, 1)
	classTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1), classOutput)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create class output tensor")
	}
	defer classTensor.Destroy()

	probOutput := make([]float64, len(m.classes))
	probTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, int64(len(m.classes))), probOutput)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to create probabilities tensor")
	}
	defer probTensor.Destroy()

	err = m.session.Run(
		[]onnxruntime.Value{inputTensor},
		[]onnxruntime.Value{classTensor, probTensor},
	)
	if err != nil {
		return "", nil, errors.Wrap(err, "inference failed")
	}

	idx := int(classOutput[0])
	if idx < 0 || idx >= len(m.classes) {
		return "", nil, errors.Newf("class index %d outside %d known labels", idx, len(m.classes))
	}

	probabilities := make(map[string]float64, len(m.classes))
	for i, p := range probOutput {
		probabilities[m.classes[i]] = p
	}
	return m.classes[idx], probabilities, nil
}

// Destroy releases the session. Safe to call more than once.
func (m *ONNXModel) Destroy() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}
