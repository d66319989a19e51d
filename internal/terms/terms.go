package terms

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

var (
	ErrInputMissing = errors.New("search terms file not found")
	ErrInputEmpty   = errors.New("search terms file is empty")
)

// Load reads one search term per line, trimming whitespace and skipping
// blank lines.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	terms, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return terms, nil
}

func Read(r io.Reader) ([]string, error) {
	var terms []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line != "" {
			terms = append(terms, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search terms: %w", err)
	}

	if len(terms) == 0 {
		return nil, ErrInputEmpty
	}
	return terms, nil
}

// Sanitize maps a term onto a filename-safe prefix: every rune that is not a
// letter or digit becomes an underscore.
func Sanitize(term string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, term)
}
