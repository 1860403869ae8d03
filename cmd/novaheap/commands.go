package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tuannm99/novadb/internal/bufferpool"
	"github.com/tuannm99/novadb/internal/catalog"
	"github.com/tuannm99/novadb/internal/config"
	"github.com/tuannm99/novadb/internal/exec"
	"github.com/tuannm99/novadb/internal/optimizer"
	"github.com/tuannm99/novadb/internal/record"
	"github.com/tuannm99/novadb/internal/storage"
)

const helpText = `commands:
  tables                              list tables with size and page count
  scan <table> [limit]                print live tuples with their record ids
  insert <table> <v1> <v2> ...        insert one tuple
  delete <table> <page> <slot>        delete the tuple at a record id
  agg <table> <op> <col> [groupcol]   min|max|sum|avg|count over a column
  stats                               rebuild statistics for every table
  sel <table> <col> <op> <value>      estimated selectivity of col op value
  flush                               write every dirty page to disk
  \help                               this text
  \q | quit | exit                    quit`

var errUsage = errors.New("usage")

type session struct {
	cfg  *config.Config
	cat  *catalog.Catalog
	pool *bufferpool.Pool
	out  io.Writer
}

// exec runs one command line. quit reports whether the REPL should stop.
func (s *session) exec(ctx context.Context, line string) (quit bool, err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	switch args[0] {
	case "\\q", "quit", "exit":
		return true, nil
	case "\\help", "help":
		fmt.Fprintln(s.out, helpText)
		return false, nil
	case "tables":
		return false, s.tables()
	case "scan":
		return false, s.scan(args[1:])
	case "insert":
		return false, s.insert(args[1:])
	case "delete":
		return false, s.delete(args[1:])
	case "agg":
		return false, s.aggregate(args[1:])
	case "stats":
		return false, s.stats(ctx)
	case "sel":
		return false, s.selectivity(args[1:])
	case "flush":
		if err := s.pool.FlushAll(); err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, "OK")
		return false, nil
	default:
		return false, fmt.Errorf("unknown command: %s", args[0])
	}
}

type sizer interface {
	SizeBytes() (int64, error)
}

func (s *session) tables() error {
	var rows [][]string
	for _, id := range s.cat.TableIDs() {
		meta, err := s.cat.Describe(id)
		if err != nil {
			return err
		}
		size := "-"
		if f, err := s.cat.File(id); err == nil {
			if sz, ok := f.(sizer); ok {
				if n, err := sz.SizeBytes(); err == nil {
					size = humanize.IBytes(uint64(n))
				}
			}
		}
		rows = append(rows, []string{
			meta.Name,
			strconv.FormatUint(meta.ID, 16),
			humanize.Comma(int64(meta.PageCount)),
			size,
			meta.Desc.String(),
		})
	}
	printTable(s.out, []string{"name", "id", "pages", "size", "schema"}, rows)
	return nil
}

func (s *session) file(name string) (storage.DBFile, error) {
	id, err := s.cat.TableID(name)
	if err != nil {
		return nil, err
	}
	return s.cat.File(id)
}

func (s *session) scan(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: scan <table> [limit]", errUsage)
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}
	limit := -1
	if len(args) == 2 {
		if limit, err = strconv.Atoi(args[1]); err != nil || limit < 0 {
			return fmt.Errorf("%w: bad limit %q", errUsage, args[1])
		}
	}

	scan := exec.NewSeqScan(f, storage.NewTxID())
	if err := scan.Open(); err != nil {
		return err
	}
	defer scan.Close()

	cols := []string{"rid"}
	for _, ft := range f.Desc().Fields {
		cols = append(cols, ft.Name)
	}
	rows, err := drain(scan, limit, func(t *record.Tuple) []string {
		row := []string{"-"}
		if t.RID != nil {
			row[0] = t.RID.String()
		}
		for _, fld := range t.Fields {
			row = append(row, fld.String())
		}
		return row
	})
	if err != nil {
		return err
	}
	printTable(s.out, cols, rows)
	return nil
}

func (s *session) insert(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: insert <table> <v1> <v2> ...", errUsage)
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}
	desc := f.Desc()
	vals := args[1:]
	if len(vals) != desc.NumFields() {
		return fmt.Errorf("%w: %s takes %d values, got %d", errUsage, desc, desc.NumFields(), len(vals))
	}
	fields := make([]record.Field, len(vals))
	for i, v := range vals {
		if fields[i], err = parseField(desc.Fields[i], v); err != nil {
			return err
		}
	}
	t, err := record.NewTuple(desc, fields...)
	if err != nil {
		return err
	}
	if _, err := f.InsertTuple(storage.NewTxID(), t); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "INSERT %s\n", t.RID)
	return nil
}

func (s *session) delete(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: delete <table> <page> <slot>", errUsage)
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}
	pageNo, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: bad page %q", errUsage, args[1])
	}
	slot, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("%w: bad slot %q", errUsage, args[2])
	}
	rid := &record.RecordID{PageID: record.PageID{TableID: f.ID(), PageNo: pageNo}, Slot: slot}
	if _, err := f.DeleteTuple(storage.NewTxID(), &record.Tuple{Desc: f.Desc(), RID: rid}); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "DELETE %s\n", rid)
	return nil
}

func (s *session) aggregate(args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return fmt.Errorf("%w: agg <table> <op> <col> [groupcol]", errUsage)
	}
	f, err := s.file(args[0])
	if err != nil {
		return err
	}
	op, err := exec.ParseAggOp(args[1])
	if err != nil {
		return err
	}
	desc := f.Desc()
	aField := desc.FieldIndex(args[2])
	if aField < 0 {
		return fmt.Errorf("no column %q in %s", args[2], args[0])
	}
	gField := exec.NoGrouping
	if len(args) == 4 {
		if gField = desc.FieldIndex(args[3]); gField < 0 {
			return fmt.Errorf("no column %q in %s", args[3], args[0])
		}
	}

	agg, err := exec.NewAggregate(exec.NewSeqScan(f, storage.NewTxID()), aField, gField, op)
	if err != nil {
		return err
	}
	if err := agg.Open(); err != nil {
		return err
	}
	defer agg.Close()

	var cols []string
	for _, ft := range agg.Desc().Fields {
		cols = append(cols, ft.Name)
	}
	rows, err := drain(agg, -1, func(t *record.Tuple) []string {
		row := make([]string, len(t.Fields))
		for i, fld := range t.Fields {
			row[i] = fld.String()
		}
		return row
	})
	if err != nil {
		return err
	}
	printTable(s.out, cols, rows)
	return nil
}

func (s *session) stats(ctx context.Context) error {
	err := optimizer.ComputeStatistics(ctx, s.cat, s.cfg.Stats.IOCostPerPage,
		optimizer.WithHistogramBins(s.cfg.Stats.HistogramBins),
		optimizer.WithParallelism(s.cfg.Stats.Parallelism))
	if err != nil {
		return err
	}
	m := optimizer.StatsMap()
	var rows [][]string
	for _, id := range s.cat.TableIDs() {
		name, err := s.cat.TableName(id)
		if err != nil {
			return err
		}
		ts, ok := m[name]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			name,
			humanize.Comma(ts.TotalTuples()),
			humanize.Comma(int64(ts.NumPages())),
			humanize.CommafWithDigits(ts.EstimateScanCost(), 0),
		})
	}
	printTable(s.out, []string{"name", "tuples", "pages", "scan cost"}, rows)
	return nil
}

func (s *session) selectivity(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("%w: sel <table> <col> <op> <value>", errUsage)
	}
	ts := optimizer.GetTableStats(args[0])
	if ts == nil {
		return fmt.Errorf("no statistics for %q, run stats first", args[0])
	}
	col := ts.Desc().FieldIndex(args[1])
	if col < 0 {
		return fmt.Errorf("no column %q in %s", args[1], args[0])
	}
	op, err := record.ParseOp(args[2])
	if err != nil {
		return err
	}
	v, err := parseField(ts.Desc().Fields[col], args[3])
	if err != nil {
		return err
	}
	sel, err := ts.EstimateSelectivity(col, op, v)
	if err != nil {
		return err
	}
	printTable(s.out, []string{"selectivity", "avg", "rows"}, [][]string{{
		strconv.FormatFloat(sel, 'f', 4, 64),
		strconv.FormatFloat(ts.AvgSelectivity(col, op), 'f', 4, 64),
		humanize.Comma(ts.EstimateCardinality(sel)),
	}})
	return nil
}

func parseField(ft record.FieldType, v string) (record.Field, error) {
	switch ft.Type {
	case record.IntType:
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: column %s wants an int, got %q", errUsage, ft.Name, v)
		}
		return record.NewIntField(int32(n)), nil
	case record.StringType:
		return record.NewStringField(v, ft.Len), nil
	default:
		return nil, fmt.Errorf("column %s has unsupported type %s", ft.Name, ft.Type)
	}
}

func drain(it exec.OpIterator, limit int, format func(*record.Tuple) []string) ([][]string, error) {
	var rows [][]string
	for limit < 0 || len(rows) < limit {
		ok, err := it.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t, err := it.Next()
		if err != nil {
			return nil, err
		}
		rows = append(rows, format(t))
	}
	return rows, nil
}

func printTable(w io.Writer, cols []string, rows [][]string) {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i := range cols {
			if i < len(row) && len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			v := ""
			if i < len(values) {
				v = values[i]
			}
			fmt.Fprint(w, padRight(v, widths[i]))
		}
		fmt.Fprintln(w)
	}

	printRow(cols)
	for i := range cols {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		printRow(row)
	}
	fmt.Fprintf(w, "(%s rows)\n", humanize.Comma(int64(len(rows))))
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
