package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	stdout string
	err    error
}

type fakeRunner struct {
	outputs map[string]fakeOutput // keyed by --psm value
	calls   [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	o := f.outputs[args[5]]
	var stderr []byte
	if o.err != nil {
		stderr = []byte("Error in pixReadStream")
	}
	return []byte(o.stdout), stderr, o.err
}

func TestTesseractLongestOutputWins(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"3": {stdout: "Rahul Kumar"},
		"4": {stdout: "Rahul Kumar Singh\nDOB: 05/11/1998\n"},
		"6": {stdout: "   Rahul   \n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n\n  "},
	}}
	r := NewTesseractRecognizer(TesseractConfig{}, runner)

	res, err := r.RecognizeText(context.Background(), "/tmp/card.png_processed.png")
	require.NoError(t, err)

	assert.Equal(t, "Rahul Kumar Singh\nDOB: 05/11/1998\n", res.Text)
	assert.Equal(t, "--psm 4", res.Variant)
	assert.Equal(t, EngineTesseract, res.Engine)
	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"tesseract", "/tmp/card.png_processed.png", "stdout", "-l", "eng", "--psm", "3"}, runner.calls[0])
}

func TestTesseractSkipsFailingModes(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"3": {err: errors.New("exit status 1")},
		"4": {stdout: "1234 5678 9012"},
		"6": {err: errors.New("exit status 1")},
	}}
	r := NewTesseractRecognizer(TesseractConfig{}, runner)

	res, err := r.RecognizeText(context.Background(), "card.png")
	require.NoError(t, err)
	assert.Equal(t, "1234 5678 9012", res.Text)
	assert.Equal(t, "--psm 4", res.Variant)
}

func TestTesseractAllModesFail(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"3": {err: errors.New("exit status 1")},
		"4": {err: errors.New("exit status 1")},
		"6": {err: errors.New("exit status 1")},
	}}
	r := NewTesseractRecognizer(TesseractConfig{}, runner)

	_, err := r.RecognizeText(context.Background(), "card.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOCRFailed))
}

func TestTesseractEmptyOutput(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{}}
	r := NewTesseractRecognizer(TesseractConfig{PSMs: []int{6}}, runner)

	_, err := r.RecognizeText(context.Background(), "card.png")
	assert.True(t, errors.Is(err, ErrEmptyDocument))
}

func TestTesseractCustomConfig(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{"11": {stdout: "VID: 9123 4567 890"}}}
	r := NewTesseractRecognizer(TesseractConfig{
		Path:        "/usr/local/bin/tesseract",
		Lang:        "eng+hin",
		PSMs:        []int{11},
		TessdataDir: "/opt/tessdata",
	}, runner)

	res, err := r.RecognizeText(context.Background(), "card.png")
	require.NoError(t, err)

	assert.Equal(t, []string{"eng", "hin"}, res.LanguageCodes)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"/usr/local/bin/tesseract", "card.png", "stdout", "-l", "eng+hin", "--psm", "11",
		"--tessdata-dir", "/opt/tessdata",
	}, runner.calls[0])
}

func TestTesseractCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{outputs: map[string]fakeOutput{}}

	_, err := NewTesseractRecognizer(TesseractConfig{}, runner).RecognizeText(ctx, "card.png")

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, runner.calls)
}
