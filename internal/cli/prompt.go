package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/studiopipe/kitsu-fetch/internal/models"
)

// errAborted is returned when the user declines a confirmation.
var errAborted = errors.New("aborted by user")

// prompter reads answers from in and writes questions to out. Passwords are
// read without echo when in is a terminal.
type prompter struct {
	in      *bufio.Reader
	out     io.Writer
	stdinFd int // -1 when in is not the process stdin
}

func newStdPrompter() *prompter {
	return &prompter{in: bufio.NewReader(os.Stdin), out: os.Stderr, stdinFd: int(os.Stdin.Fd())}
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out, stdinFd: -1}
}

func (p *prompter) line(question string) (string, error) {
	fmt.Fprint(p.out, question)
	input, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (p *prompter) password(question string) (string, error) {
	if p.stdinFd >= 0 && term.IsTerminal(p.stdinFd) {
		fmt.Fprint(p.out, question)
		b, err := term.ReadPassword(p.stdinFd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return p.line(question)
}

// confirm asks a yes/no question; anything but y or yes is a no.
func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.line(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// chooseProject lists projects numbered from 1 and returns the index of
// the chosen one. Invalid answers are asked again.
func (p *prompter) chooseProject(projects []models.Project) (int, error) {
	if len(projects) == 0 {
		return -1, errors.New("no open projects")
	}
	fmt.Fprintln(p.out, "\nOpen projects:")
	for i, proj := range projects {
		fmt.Fprintf(p.out, "  %2d. %s\n", i+1, proj.Name)
	}
	for {
		answer, err := p.line(fmt.Sprintf("Choose a project [1-%d]: ", len(projects)))
		if err != nil {
			return -1, err
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(projects) {
			return n - 1, nil
		}
		fmt.Fprintln(p.out, "Invalid choice, please try again.")
	}
}

// findProject resolves --project: a 1-based number, an id or a name
// (case-insensitive).
func findProject(projects []models.Project, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(projects) {
		return n - 1, nil
	}
	for i, proj := range projects {
		if proj.ID == ref || strings.EqualFold(proj.Name, ref) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("project %q not found among %d open projects", ref, len(projects))
}
