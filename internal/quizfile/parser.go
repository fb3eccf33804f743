// Package quizfile parses the pipe-delimited question bank export format.
//
// The accepted input is the text a `mysql` client prints for a SELECT over a
// question/option join: cell rows separated by `|`, framed by `+----+` border
// lines. Border lines, blank lines, and lines without a pipe are ignored.
// Malformed data rows are skipped; missing required headers abort the load.
package quizfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"warp-quiz-server/internal/domain"
)

// Headers lists the required header tokens in canonical column order.
var Headers = []string{
	"question_id",
	"question_text",
	"difficulty",
	"option_id",
	"option_text",
	"is_correct",
}

var (
	// ErrNoRows is returned when the file contains no usable data rows.
	ErrNoRows = errors.New("no valid data rows found in file")
	// ErrColumnCount is returned for headerless files whose rows do not
	// carry exactly the expected number of columns.
	ErrColumnCount = errors.New("unexpected column count")
)

// MissingHeaderError reports required header tokens absent from the header row.
type MissingHeaderError struct {
	Missing []string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing required headers: %s", strings.Join(e.Missing, ", "))
}

// Parse reads a bank from r. Question order follows first appearance in the
// file; options keep file order within each question.
func Parse(r io.Reader) (domain.Bank, error) {
	rows, err := dataRows(r)
	if err != nil {
		return domain.Bank{}, err
	}
	if len(rows) == 0 {
		return domain.Bank{}, ErrNoRows
	}

	columns, rows, err := resolveColumns(rows)
	if err != nil {
		return domain.Bank{}, err
	}

	bank := domain.Bank{}
	index := map[string]int{}
	for _, row := range rows {
		questionID, ok := cell(row, columns, "question_id")
		if !ok || questionID == "" {
			continue
		}
		optionID, ok := cell(row, columns, "option_id")
		if !ok || optionID == "" {
			continue
		}
		text, _ := cell(row, columns, "question_text")
		difficulty, _ := cell(row, columns, "difficulty")
		optionText, _ := cell(row, columns, "option_text")
		correct, _ := cell(row, columns, "is_correct")

		i, seen := index[questionID]
		if !seen {
			bank.Questions = append(bank.Questions, domain.Question{
				ID:         questionID,
				Text:       text,
				Difficulty: difficulty,
			})
			i = len(bank.Questions) - 1
			index[questionID] = i
		}
		bank.Questions[i].Options = append(bank.Questions[i].Options, domain.Option{
			ID:      optionID,
			Text:    optionText,
			Correct: correct == "1",
		})
	}

	if len(bank.Questions) == 0 {
		return domain.Bank{}, ErrNoRows
	}
	return bank, nil
}

// dataRows strips decoration and splits the surviving lines into cells.
func dataRows(r io.Reader) ([][]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows [][]string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, "|") {
			continue
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			continue
		}
		rows = append(rows, splitRow(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read quiz file: %w", err)
	}
	return rows, nil
}

// splitRow splits a pipe row into trimmed cells, dropping the empty edge
// cells produced by leading/trailing pipes.
func splitRow(line string) []string {
	cells := strings.Split(line, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	if len(cells) > 0 && cells[0] == "" {
		cells = cells[1:]
	}
	if len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

// resolveColumns locates the header row. When the first row carries the
// question_id token it becomes the header and must name every required
// column. Otherwise the file is assumed headerless with columns in
// canonical order, which requires an exact column count.
func resolveColumns(rows [][]string) (map[string]int, [][]string, error) {
	first := rows[0]
	if hasHeaderToken(first) {
		columns := map[string]int{}
		for i, name := range first {
			columns[strings.ToLower(name)] = i
		}
		var missing []string
		for _, want := range Headers {
			if _, ok := columns[want]; !ok {
				missing = append(missing, want)
			}
		}
		if len(missing) > 0 {
			return nil, nil, &MissingHeaderError{Missing: missing}
		}
		return columns, rows[1:], nil
	}

	if len(first) != len(Headers) {
		return nil, nil, fmt.Errorf("%w: file has %d columns, expected %d", ErrColumnCount, len(first), len(Headers))
	}
	columns := map[string]int{}
	for i, name := range Headers {
		columns[name] = i
	}
	return columns, rows, nil
}

func hasHeaderToken(row []string) bool {
	for _, c := range row {
		if strings.EqualFold(c, "question_id") {
			return true
		}
	}
	return false
}

func cell(row []string, columns map[string]int, name string) (string, bool) {
	i, ok := columns[name]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}
