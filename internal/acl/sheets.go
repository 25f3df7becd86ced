package acl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const DefaultSheetRange = "rid_acl!A:B"

var rangePattern = regexp.MustCompile(`^([A-Za-z]+)(\d*):([A-Za-z]+)(\d*)$`)

// SheetsStore reads the ACL from a two-column range of a Google spreadsheet: rid
// in the first column, flag in the second.
type SheetsStore struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	readRange     string
	tab           string
	flagColumn    string
	firstRow      int
}

type SheetsOptions struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	// ClientOptions replace the credentials file when set.
	ClientOptions []option.ClientOption
}

func NewSheetsStore(ctx context.Context, options SheetsOptions) (*SheetsStore, error) {
	spreadsheetID := strings.TrimSpace(options.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("sheets acl: spreadsheet id is required")
	}
	readRange := strings.TrimSpace(options.Range)
	if readRange == "" {
		readRange = DefaultSheetRange
	}
	tab, flagColumn, firstRow, err := parseRange(readRange)
	if err != nil {
		return nil, err
	}

	clientOptions := options.ClientOptions
	if len(clientOptions) == 0 {
		if options.CredentialsFile == "" {
			return nil, errors.New("sheets acl: credentials file is required")
		}
		clientOptions = []option.ClientOption{
			option.WithCredentialsFile(options.CredentialsFile),
			option.WithScopes(sheets.SpreadsheetsScope),
		}
	}
	service, err := sheets.NewService(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("sheets acl: create service: %w", err)
	}
	return &SheetsStore{
		values:        service.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		tab:           tab,
		flagColumn:    flagColumn,
		firstRow:      firstRow,
	}, nil
}

func (s *SheetsStore) Lookup(ctx context.Context, rid string) (Entry, bool, error) {
	response, err := s.values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return Entry{}, false, fmt.Errorf("sheets acl: read %s: %w", s.readRange, err)
	}
	for index, row := range response.Values {
		if len(row) == 0 {
			continue
		}
		candidate := fmt.Sprint(row[0])
		if !matchRID(candidate, rid) {
			continue
		}
		entry := Entry{RID: strings.TrimSpace(candidate), Row: s.firstRow + index}
		if len(row) > 1 {
			entry.Flag = strings.TrimSpace(fmt.Sprint(row[1]))
		}
		return entry, true, nil
	}
	return Entry{}, false, nil
}

// Update rewrites only the flag cell of the entry's row.
func (s *SheetsStore) Update(ctx context.Context, entry Entry, flag string) error {
	if entry.Row <= 0 {
		return ErrNotFound
	}
	cell := fmt.Sprintf("%s!%s%d", s.tab, s.flagColumn, entry.Row)
	body := &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         [][]interface{}{{flag}},
	}
	_, err := s.values.Update(s.spreadsheetID, cell, body).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets acl: update %s: %w", cell, err)
	}
	return nil
}

// parseRange splits "tab!A2:B" into the tab, the flag column and the first row.
func parseRange(value string) (tab, flagColumn string, firstRow int, err error) {
	separator := strings.LastIndex(value, "!")
	if separator <= 0 || separator == len(value)-1 {
		return "", "", 0, fmt.Errorf("sheets acl: range %q must look like tab!A:B", value)
	}
	tab = value[:separator]
	matches := rangePattern.FindStringSubmatch(value[separator+1:])
	if matches == nil {
		return "", "", 0, fmt.Errorf("sheets acl: range %q must look like tab!A:B", value)
	}
	firstRow = 1
	if matches[2] != "" {
		firstRow, _ = strconv.Atoi(matches[2])
		if firstRow <= 0 {
			firstRow = 1
		}
	}
	return tab, strings.ToUpper(matches[3]), firstRow, nil
}
