package logging

import "testing"

func TestNewServerBuildsLogger(t *testing.T) {
	logger, err := NewServer()
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer logger.Sync()
	logger.Info("test message")
}

func TestNewCLIBuildsLogger(t *testing.T) {
	logger, err := NewCLI()
	if err != nil {
		t.Fatalf("NewCLI: %v", err)
	}
	defer logger.Sync()
	logger.Info("test message")
}
