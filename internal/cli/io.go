package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// IO - ввод и вывод команд; в тестах подменяется
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}

// Stdio reads from in and writes prompts and output to out. Passwords are
// read without echo when in is a terminal.
type Stdio struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer
}

// NewStdio returns IO bound to the process stdin and stdout.
func NewStdio() *Stdio {
	return &Stdio{in: os.Stdin, reader: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	input, err := s.reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (s *Stdio) ReadPassword(prompt string) (string, error) {
	fd := int(s.in.Fd())
	if !term.IsTerminal(fd) {
		// Ввод из pipe: читаем строку как есть
		return s.ReadInput(prompt)
	}

	s.Printf("%s", prompt)
	pwBytes, err := term.ReadPassword(fd)
	s.Println()
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}
