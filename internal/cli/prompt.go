package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Prompt writes label to out and reads one line from in. Only the line ending is
// removed; a path may start or end with spaces.
func Prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// InputPath returns flagValue when set, otherwise prompts for it.
func InputPath(flagValue string, in io.Reader, out io.Writer, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return Prompt(in, out, label)
}
