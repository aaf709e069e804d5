package hyperv

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// driverResult is the JSON envelope every interface-script command prints
// on stdout.
type driverResult struct {
	Success      bool
	ErrorMessage string
	Payload      json.RawMessage
}

const scriptVersion = "0.1"

var scriptName = "hvseedmanage-" + scriptVersion + ".ps1"

//go:embed assets/hvseedmanage.ps1
var script string

func findPowerShell() (string, error) {
	// First, try looking up Windows PowerShell on the path
	toolpath, err := exec.LookPath("powershell.exe")
	if err == nil {
		return toolpath, nil
	}

	// If not, look for cross-platform PowerShell
	toolpath, err = exec.LookPath("pwsh.exe")
	if err == nil {
		return toolpath, nil
	}

	return "", errors.New("PowerShell not found")
}

func findScript() (string, error) {
	cacheBase, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find script cache location: %w", err)
	}
	scriptDir := filepath.Join(cacheBase, "hvseed")
	if err := os.MkdirAll(scriptDir, 0755); err != nil {
		return "", fmt.Errorf("could not create script cache location: %w", err)
	}

	scriptPath := filepath.Join(scriptDir, scriptName)
	if _, err := os.Stat(scriptPath); err != nil {
		if err := writeScript(scriptPath); err != nil {
			return "", err
		}
	}
	return scriptPath, nil
}

func writeScript(scriptPath string) error {
	scriptFile, err := os.Create(scriptPath)
	if err != nil {
		return err
	}
	defer scriptFile.Close()

	_, err = scriptFile.WriteString(script)
	return err
}

func (c *Client) runWithResults(ctx context.Context, args ...string) (*driverResult, error) {
	powershellArgs := []string{
		"-NoProfile",
		"-NonInteractive",
		"-File",
		c.scriptPath,
	}
	powershellArgs = append(powershellArgs, args...)
	output, err := exec.CommandContext(ctx, c.powershellPath, powershellArgs...).Output()
	if err != nil {
		return nil, fmt.Errorf("error running interface script: %w", err)
	}

	dr := &driverResult{}
	if err := json.Unmarshal(output, dr); err != nil {
		return nil, fmt.Errorf("error decoding interface script output: %w", err)
	}
	return dr, nil
}
