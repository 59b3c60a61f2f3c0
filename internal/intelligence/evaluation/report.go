// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evaluation

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/traylinx/bhasharouter/internal/routing"
)

const reportRule = "============================================================"

// WriteText renders the report as the human-readable accuracy summary.
func (r *Report) WriteText(w io.Writer) error {
	m := r.Metrics
	var b strings.Builder

	fmt.Fprintln(&b, reportRule)
	fmt.Fprintln(&b, "ROUTING ACCURACY REPORT")
	fmt.Fprintln(&b, reportRule)

	fmt.Fprintln(&b, "\nOVERALL PERFORMANCE")
	fmt.Fprintf(&b, "  Total test cases:      %d\n", m.Total)
	fmt.Fprintf(&b, "  Correct predictions:   %d\n", m.Correct)
	fmt.Fprintf(&b, "  Overall accuracy:      %.2f%%\n", m.OverallAccuracy*100)
	fmt.Fprintf(&b, "  Average confidence:    %.3f\n", m.AverageConfidence)
	fmt.Fprintf(&b, "  Language detection:    %.2f%%\n", m.LanguageDetectionAccuracy*100)
	fmt.Fprintf(&b, "  Below min confidence:  %d\n", m.BelowMinConfidence)

	methods := sortedMethods(m.MethodDistribution)
	fmt.Fprintln(&b, "\nROUTING METHOD DISTRIBUTION")
	for _, method := range methods {
		mm := m.MethodDistribution[method]
		fmt.Fprintf(&b, "  %-11s %d (%.1f%%)\n", method+":", mm.Count, ratio(mm.Count, m.Total)*100)
	}

	fmt.Fprintln(&b, "\nPERFORMANCE BY ROUTING METHOD")
	for _, method := range methods {
		mm := m.MethodDistribution[method]
		fmt.Fprintf(&b, "  %-11s %d cases, %.1f%% accuracy, avg confidence %.3f\n",
			method+":", mm.Count, mm.Accuracy*100, mm.AverageConfidence)
		for _, lang := range routing.Languages() {
			if lm, ok := mm.ByLanguage[lang]; ok {
				fmt.Fprintf(&b, "    %-9s %d/%d (%.1f%%)\n", lang+":", lm.Correct, lm.Count, lm.Accuracy*100)
			}
		}
	}

	fmt.Fprintln(&b, "\nPERFORMANCE BY LANGUAGE")
	for _, lang := range routing.Languages() {
		lm, ok := m.LanguageBreakdown[lang]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-9s %d/%d (%.1f%%)\n", lang+":", lm.Correct, lm.Count, lm.Accuracy*100)
	}

	fmt.Fprintln(&b, "\nPER-HANDLER METRICS")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  handler\tprecision\trecall\tf1\tpredicted\texpected")
	outcomes := handlerOrder(m)
	for _, h := range outcomes {
		hm := m.PerHandler[h]
		fmt.Fprintf(tw, "  %s\t%.3f\t%.3f\t%.3f\t%d\t%d\n", h, hm.Precision, hm.Recall, hm.F1, hm.Predicted, hm.Expected)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(&b, "\nCONFUSION MATRIX (rows: expected, columns: predicted)")
	tw = tabwriter.NewWriter(&b, 0, 0, 1, ' ', tabwriter.AlignRight)
	header := []string{""}
	for i := range outcomes {
		header = append(header, fmt.Sprintf("%d", i))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for i, exp := range outcomes {
		cells := []string{fmt.Sprintf("%d %s", i, exp)}
		for _, got := range outcomes {
			cells = append(cells, fmt.Sprintf("%d", m.ConfusionMatrix[exp][got]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(m.Invalid) > 0 || len(m.Failed) > 0 {
		fmt.Fprintln(&b, "\nEXCLUDED CASES")
		for _, c := range m.Invalid {
			fmt.Fprintf(&b, "  invalid #%d %q: %s\n", c.Index, c.Input, c.Reason)
		}
		for _, c := range m.Failed {
			fmt.Fprintf(&b, "  failed  #%d %q: %s\n", c.Index, c.Input, c.Reason)
		}
	}

	var misses []CaseResult
	for _, res := range r.Results {
		if !res.Correct {
			misses = append(misses, res)
		}
	}
	if len(misses) > 0 {
		fmt.Fprintln(&b, "\nMISROUTED CASES")
		for _, res := range misses {
			fmt.Fprintf(&b, "  #%d %q: expected %s, got %s (%s %.3f)\n",
				res.Index, res.Case.Input, res.Case.ExpectedHandler, res.Selected, res.Method, res.Confidence)
		}
	}
	fmt.Fprintln(&b, reportRule)

	_, err := io.WriteString(w, b.String())
	return err
}

// RunRecord is the archived and stored form of one evaluation run.
type RunRecord struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Corpus      string       `json:"corpus"`
	Filter      string       `json:"filter,omitempty"`
	Provenance  *Provenance  `json:"provenance,omitempty"`
	Metrics     *Metrics     `json:"overall_stats"`
	Results     []CaseResult `json:"detailed_results"`
}

// MarshalMetrics encodes metrics with sorted map keys. Equal metrics always
// produce identical bytes.
func MarshalMetrics(m *Metrics) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// WriteJSON writes the run record as indented JSON.
func (rec *RunRecord) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func sortedMethods(dist map[routing.Method]MethodMetrics) []routing.Method {
	out := make([]routing.Method, 0, len(dist))
	for method := range dist {
		out = append(out, method)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func handlerOrder(m *Metrics) []routing.HandlerID {
	out := make([]routing.HandlerID, 0, len(m.PerHandler))
	for _, h := range routing.Outcomes() {
		if _, ok := m.PerHandler[h]; ok {
			out = append(out, h)
		}
	}
	return out
}
