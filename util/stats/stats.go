// package stats tracks operation latencies and the bytes they move
package stats

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rodaine/table"
)

type Op struct {
	count uint32
	nanos uint64
	bytes uint64
}

func (op *Op) Record(start time.Time) {
	op.RecordBytes(start, 0)
}

// RecordBytes counts one operation that started at start and moved n
// bytes of file or block data.
func (op *Op) RecordBytes(start time.Time, n uint64) {
	atomic.AddUint32(&op.count, 1)
	atomic.AddUint64(&op.nanos, uint64(time.Since(start).Nanoseconds()))
	atomic.AddUint64(&op.bytes, n)
}

func (op *Op) Count() uint32 {
	return atomic.LoadUint32(&op.count)
}

func (op *Op) Bytes() uint64 {
	return atomic.LoadUint64(&op.bytes)
}

func (op *Op) Reset() {
	atomic.StoreUint32(&op.count, 0)
	atomic.StoreUint64(&op.nanos, 0)
	atomic.StoreUint64(&op.bytes, 0)
}

func (op *Op) load() Op {
	return Op{
		count: atomic.LoadUint32(&op.count),
		nanos: atomic.LoadUint64(&op.nanos),
		bytes: atomic.LoadUint64(&op.bytes),
	}
}

func (op Op) MicrosPerOp() float64 {
	if op.count == 0 {
		return 0
	}
	return float64(op.nanos) / float64(op.count) / 1e3
}

func (op Op) BytesPerOp() float64 {
	if op.count == 0 {
		return 0
	}
	return float64(op.bytes) / float64(op.count)
}

func (op Op) throughput() string {
	if op.bytes == 0 {
		return "-"
	}
	return fmt.Sprintf("%0.0f B/op", op.BytesPerOp())
}

// WriteTable prints one row per operation that ran at least once, then
// a total.
func WriteTable(names []string, ops []Op, w io.Writer) {
	if len(names) != len(ops) {
		panic("mismatched names and ops lists")
	}
	tbl := table.New("op", "count", "us", "data")
	tbl.WithWriter(w)
	var total Op
	for i, name := range names {
		op := ops[i].load()
		if op.count == 0 {
			continue
		}
		total.count += op.count
		total.nanos += op.nanos
		total.bytes += op.bytes
		tbl.AddRow(name, op.count, fmt.Sprintf("%0.1f us/op", op.MicrosPerOp()), op.throughput())
	}
	tbl.AddRow("total", total.count,
		fmt.Sprintf("%0.1f us", float64(total.nanos)/1e3),
		fmt.Sprintf("%d B", total.bytes))
	tbl.Print()
}

func FormatTable(names []string, ops []Op) string {
	buf := new(bytes.Buffer)
	WriteTable(names, ops, buf)
	return buf.String()
}
