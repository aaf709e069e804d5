// Package hyperv manages local Hyper-V virtual machines through a
// PowerShell interface script. Each operation maps to one script command
// whose stdout is a JSON result envelope.
package hyperv

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/vargulf/hvseed/utils"
)

// VMSpec describes the single VM this tool creates: generation 2, bound to
// an extracted disk image and a named virtual switch.
type VMSpec struct {
	Name          string
	MemoryBytes   int64
	DiskImagePath string
	SwitchName    string
}

// VMInfo is the property set reported after provisioning.
type VMInfo struct {
	Name               string
	State              string
	Generation         int
	MemoryStartupBytes int64
	ProcessorCount     int
}

type Client struct {
	powershellPath string
	scriptPath     string
	log            zerolog.Logger
}

func New() (*Client, error) {
	powershellPath, err := findPowerShell()
	if err != nil {
		return nil, err
	}
	scriptPath, err := findScript()
	if err != nil {
		return nil, err
	}
	return &Client{
		powershellPath: powershellPath,
		scriptPath:     scriptPath,
		log:            utils.GetLogger("hyperv"),
	}, nil
}

// CheckElevated reports whether the process holds administrative rights.
// It does this by running the command:
//
//	checkelevated
//
// through the interface script.
func (c *Client) CheckElevated(ctx context.Context) (bool, error) {
	result, err := c.runWithResults(ctx, "checkelevated")
	if err != nil {
		return false, fmt.Errorf("could not check elevation: %w", err)
	}
	if !result.Success {
		return false, fmt.Errorf("could not check elevation: %v", result.ErrorMessage)
	}
	var payload struct {
		Elevated bool
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return false, fmt.Errorf("could not check elevation: interface error: %w", err)
	}
	return payload.Elevated, nil
}

// Exists reports whether a VM with the given name is registered.
// It does this by running the Cmdlet:
//
//	Get-VM -Name <name>
//
// through the interface script.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	result, err := c.runWithResults(ctx, "vmexists", name)
	if err != nil {
		return false, fmt.Errorf("could not query VM %s: %w", name, err)
	}
	if !result.Success {
		return false, fmt.Errorf("could not query VM %s: %v", name, result.ErrorMessage)
	}
	var payload struct {
		Exists bool
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return false, fmt.Errorf("could not query VM %s: interface error: %w", name, err)
	}
	return payload.Exists, nil
}

// Create provisions a generation-2 VM bound to the disk image and switch.
// It does this by running the Cmdlet:
//
//	New-VM -Name <name> -Generation 2 -MemoryStartupBytes <bytes> -VHDPath <path> -SwitchName <switch>
//
// through the interface script.
func (c *Client) Create(ctx context.Context, spec VMSpec) error {
	c.log.Debug().Str("name", spec.Name).Str("disk", spec.DiskImagePath).Msg("Creating VM")
	result, err := c.runWithResults(
		ctx,
		"newvm",
		spec.Name,
		strconv.FormatInt(spec.MemoryBytes, 10),
		spec.DiskImagePath,
		spec.SwitchName,
	)
	if err != nil {
		return fmt.Errorf("could not create VM %s: %w", spec.Name, err)
	}
	if !result.Success {
		return fmt.Errorf("could not create VM %s: %v", spec.Name, result.ErrorMessage)
	}
	return nil
}

// SetProcessorCount sets the VM's virtual processor count.
// It does this by running the Cmdlet:
//
//	Set-VM -Name <name> -ProcessorCount <count>
//
// through the interface script.
func (c *Client) SetProcessorCount(ctx context.Context, name string, count int) error {
	result, err := c.runWithResults(ctx, "setprocessors", name, strconv.Itoa(count))
	if err != nil {
		return fmt.Errorf("could not set processor count on %s: %w", name, err)
	}
	if !result.Success {
		return fmt.Errorf("could not set processor count on %s: %v", name, result.ErrorMessage)
	}
	return nil
}

// Get returns the named VM's reported properties.
func (c *Client) Get(ctx context.Context, name string) (*VMInfo, error) {
	result, err := c.runWithResults(ctx, "getvm", name)
	if err != nil {
		return nil, fmt.Errorf("could not get VM %s: %w", name, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("could not get VM %s: %v", name, result.ErrorMessage)
	}
	var payload struct {
		VM VMInfo
	}
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return nil, fmt.Errorf("could not get VM %s: interface error: %w", name, err)
	}
	return &payload.VM, nil
}
