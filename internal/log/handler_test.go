/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelWarn, false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be filtered at warn level")
	}

	l := slog.New(h).With(slog.String("k", "v")).WithGroup("req")
	l.Error("boom", slog.Int("n", 42), slog.Float64("pi", 3.14), slog.Bool("ok", true),
		slog.String("name", "Sprint plan"), slog.Any("err", errors.New("disk full")))

	out := buf.String()
	for _, want := range []string{" ERR boom", " k=v", " req.n=42", " req.pi=3.14", " req.ok=true", ` req.name="Sprint plan"`, ` req.err="disk full"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "req.k=") {
		t.Fatalf("attr added before the group must not be prefixed: %q", out)
	}
	if !strings.HasSuffix(out, "\n") || strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one line: %q", out)
	}
}

func TestConsoleHandlerExpandsGroupValues(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newConsoleHandler(&buf, slog.LevelDebug, false)).Debug("drag",
		slog.Group("from", slog.Int("x", 1), slog.Int("y", 2)), slog.Duration("took", 1500*time.Millisecond))
	out := buf.String()
	if !strings.Contains(out, "DBG drag from.x=1 from.y=2 took=1.5s") {
		t.Fatalf("unexpected line %q", out)
	}
}

type failing struct{ slog.Handler }

func (failing) Handle(context.Context, slog.Record) error { return errors.New("nope") }

func TestFanoutDeliversToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	f := fanout{
		newConsoleHandler(&a, slog.LevelInfo, false),
		failing{newConsoleHandler(&b, slog.LevelInfo, false)},
		newConsoleHandler(&b, slog.LevelError, false),
	}
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := f.Handle(context.Background(), r); err == nil || err.Error() != "nope" {
		t.Fatalf("expected joined handler error, got %v", err)
	}
	if !strings.Contains(a.String(), "hello") {
		t.Fatalf("first handler missed the record")
	}
	if b.Len() != 0 {
		t.Fatalf("error-level handler received an info record: %q", b.String())
	}
	if !f.Enabled(context.Background(), slog.LevelInfo) || f.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("fanout Enabled mismatch")
	}
}
