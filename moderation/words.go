package moderation

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/samber/lo"

	"group-lab/errors"
)

//go:embed words/*.txt
var embeddedWords embed.FS

// WordList is a deduplicated banned-word set plus the languages it was
// assembled from (one file per language).
type WordList struct {
	Words     []string
	Languages []string
}

// DefaultWords loads the word lists embedded in the binary.
func DefaultWords() (WordList, error) {
	return loadDir(embeddedWords, "words")
}

// LoadWordsFile reads one extra word file, one word per line, ignoring
// blanks and '#' comments. Used for operator-supplied lists.
func LoadWordsFile(filepath string) ([]string, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("open word file: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read word file: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w in %s", errors.ErrEmptyWords, filepath)
	}
	return lo.Uniq(words), nil
}

func loadDir(fsys fs.FS, dir string) (WordList, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return WordList{}, err
	}

	var list WordList
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return WordList{}, err
		}
		lang := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		list.Languages = append(list.Languages, lang)
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			list.Words = append(list.Words, line)
		}
	}
	if len(list.Words) == 0 {
		return WordList{}, errors.ErrEmptyWords
	}
	list.Words = lo.Uniq(list.Words)
	return list, nil
}
