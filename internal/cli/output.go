package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Table — табличное представление данных команды.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable создаёт таблицу с заголовками.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// Add добавляет строку. Пустые ячейки выводятся как "-".
func (t *Table) Add(cells ...string) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = dash(c)
	}
	t.Rows = append(t.Rows, row)
}

// Output управляет форматированием вывода CLI.
//
// Данные (таблицы, JSON, манифесты) идут в w, сообщения — в errW,
// чтобы вывод можно было передавать дальше через pipe.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output на stdout/stderr. jsonMode=true → данные в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(os.Stdout, os.Stderr, jsonMode)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// JSONMode возвращает true, если включён вывод в JSON.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Print выводит таблицу или, в режиме JSON, data.
func (o *Output) Print(t *Table, data any) {
	if o.jsonMode {
		o.JSON(data)
		return
	}
	if len(t.Rows) == 0 {
		fmt.Fprintln(o.errW, "No results")
		return
	}

	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	rule := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// JSON выводит v с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(o.errW, "encode output:", err)
	}
}

// Raw выводит данные как есть (YAML манифестов).
func (o *Output) Raw(data []byte) {
	_, _ = o.w.Write(data)
}

// Success выводит итоговое сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}
