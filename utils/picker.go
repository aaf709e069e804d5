package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrSelectionCancelled is returned when the operator aborts the prompt
// with an empty line, EOF, or an unparseable choice.
var ErrSelectionCancelled = errors.New("selection cancelled")

// PromptSelect presents a blocking numbered single-select list and returns
// the zero-based index of the chosen option. The process suspends until the
// operator answers or cancels.
func PromptSelect(header string, options []string) (int, error) {
	return promptSelect(header, options, os.Stdin)
}

func promptSelect(header string, options []string, in io.Reader) (int, error) {
	PrintHeader(header)
	for i, option := range options {
		fmt.Printf("  %s %s\n", FInfo(fmt.Sprintf("[%d]", i+1)), option)
	}
	PrintDetail(fmt.Sprintf("Enter choice (1-%d, empty to cancel):", len(options)))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return 0, ErrSelectionCancelled
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, ErrSelectionCancelled
	}
	choice, err := strconv.Atoi(line)
	if err != nil || choice < 1 || choice > len(options) {
		return 0, ErrSelectionCancelled
	}
	return choice - 1, nil
}
