package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSpinnerStartStop(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "Building image",
		NoColor:  true,
		Interval: 50 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(150 * time.Millisecond)
	spinner.Stop()

	if !strings.Contains(buf.String(), "Building image") {
		t.Errorf("Expected spinner to show message, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "\r\033[K") {
		t.Error("Expected spinner to clear the line on stop")
	}
}

func TestSpinnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message: "Verifying",
		NoColor: true,
	})

	spinner.Start()
	time.Sleep(50 * time.Millisecond)
	spinner.Success("Verification passed")

	output := buf.String()
	if !strings.Contains(output, "✓") {
		t.Error("Expected success symbol ✓")
	}
	if !strings.Contains(output, "Verification passed") {
		t.Errorf("Expected success message, got: %s", output)
	}
}

func TestSpinnerError(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message: "Verifying",
		NoColor: true,
	})

	spinner.Start()
	time.Sleep(50 * time.Millisecond)
	spinner.Error("Verification failed")

	output := buf.String()
	if !strings.Contains(output, "✗") {
		t.Error("Expected error symbol ✗")
	}
	if !strings.Contains(output, "Verification failed") {
		t.Errorf("Expected error message, got: %s", output)
	}
}

func TestSpinnerUpdateMessage(t *testing.T) {
	var buf bytes.Buffer
	spinner := NewSpinner(&buf, SpinnerOptions{
		Message:  "Resolving",
		NoColor:  true,
		Interval: 20 * time.Millisecond,
	})

	spinner.Start()
	time.Sleep(60 * time.Millisecond)
	spinner.UpdateMessage("Assembling")
	time.Sleep(60 * time.Millisecond)
	spinner.Stop()

	output := buf.String()
	if !strings.Contains(output, "Resolving") {
		t.Error("Expected original message in output")
	}
	if !strings.Contains(output, "Assembling") {
		t.Error("Expected updated message in output")
	}
}

func TestWithSpinnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	err := WithSpinner(&buf, "Inspecting image", true, func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "✓ Inspecting image") {
		t.Errorf("Expected success line, got: %s", buf.String())
	}
}

func TestWithSpinnerError(t *testing.T) {
	var buf bytes.Buffer
	wantErr := errors.New("engine not found")
	err := WithSpinner(&buf, "Inspecting image", true, func() error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Expected original error back, got %v", err)
	}
	if !strings.Contains(buf.String(), "✗ Inspecting image failed") {
		t.Errorf("Expected failure line, got: %s", buf.String())
	}
}

func TestStepsProgress(t *testing.T) {
	var buf bytes.Buffer
	steps := NewSteps(&buf, 2, true)

	steps.Start("resolve")
	steps.Done()
	steps.Start("assemble")
	steps.Fail()

	output := buf.String()
	if !strings.Contains(output, "[1/2] resolve") {
		t.Errorf("Expected first step header, got: %s", output)
	}
	if !strings.Contains(output, "ok") {
		t.Errorf("Expected ok marker, got: %s", output)
	}
	if !strings.Contains(output, "[2/2] assemble") {
		t.Errorf("Expected second step header, got: %s", output)
	}
	if !strings.Contains(output, "failed") {
		t.Errorf("Expected failed marker, got: %s", output)
	}
}
