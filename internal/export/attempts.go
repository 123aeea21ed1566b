// Package export writes recorded quiz attempts to spreadsheet workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"studynotes-client/internal/domain"
)

const (
	attemptsSheet = "Attempts"
	answersSheet  = "Answers"
	timeLayout    = "2006-01-02 15:04:05"
)

var (
	attemptHeaders = []string{"Attempt ID", "Quiz ID", "Submitted At", "Score", "Total", "Percentage", "Answered"}
	answerHeaders  = []string{"Attempt ID", "Question ID", "User Answer", "Correct Answer", "Correct", "Explanation"}
)

// WriteAttempts renders attempts as an xlsx workbook: one summary row per attempt
// on the first sheet and one row per graded answer on the second.
func WriteAttempts(attempts []domain.Attempt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for _, sheet := range []string{attemptsSheet, answersSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(attemptsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to find Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeRow(f, attemptsSheet, 1, toRow(attemptHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, answersSheet, 1, toRow(answerHeaders)); err != nil {
		return nil, err
	}

	answerRow := 2
	for i, a := range attempts {
		row := []interface{}{
			a.ID,
			a.QuizID,
			a.SubmittedAt.UTC().Format(timeLayout),
			a.Results.Score,
			a.Results.Total,
			a.Results.Percentage,
			len(a.Answers),
		}
		if err := writeRow(f, attemptsSheet, i+2, row); err != nil {
			return nil, err
		}

		for _, r := range a.Results.Results {
			explanation := ""
			if r.Explanation != nil {
				explanation = *r.Explanation
			}
			correct := "No"
			if r.IsCorrect {
				correct = "Yes"
			}
			if err := writeRow(f, answersSheet, answerRow, []interface{}{a.ID, r.QuestionID, r.UserAnswer, r.CorrectAnswer, correct, explanation}); err != nil {
				return nil, err
			}
			answerRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
