package testlog_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/streamcheck/testlog"
)

var _ = Describe("Log", func() {
	var (
		dir     string
		path    string
		builder testlog.Builder
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "logs", "test_log.json")
		builder = testlog.Builder{}.
			WithPath(path).
			WithPlatform("rcc").
			WithDirectories(dir).
			WithClock(func() time.Time {
				return time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
			}).
			WithCommitLookup(func(string) string { return "abc123" })
	})

	readRaw := func() map[string]any {
		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())

		var raw map[string]any
		Expect(json.Unmarshal(data, &raw)).To(Succeed())

		return raw
	}

	It("should require a path", func() {
		_, err := testlog.Builder{}.Build()

		Expect(err).To(HaveOccurred())
	})

	It("should write the nested document", func() {
		l, err := builder.Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(l.SetTestInfo("case01", "02", "gen_sine", "bounded")).To(Succeed())
		Expect(l.RecordPass("my_worker", "output", "case01", "02")).To(Succeed())

		raw := readRaw()
		entry := raw["case01"].(map[string]any)["02"].(map[string]any)
		Expect(entry).To(HaveKeyWithValue("generator", "gen_sine"))
		Expect(entry).To(HaveKeyWithValue("comparison_method", "bounded"))

		run := entry["my_worker"].(map[string]any)["rcc"].(map[string]any)
		Expect(run).To(HaveKeyWithValue("result",
			map[string]any{"output": "PASSED"}))
		Expect(run).To(HaveKeyWithValue("date", "2024-03-09"))
		Expect(run).To(HaveKeyWithValue("time", "14:05:06"))
		Expect(run).To(HaveKeyWithValue("commit_ids", []any{"abc123"}))
		Expect(run["directories"]).To(HaveLen(1))
		Expect(run["run_id"]).To(Equal(l.RunID()))
	})

	It("should refuse worker names used by the test information", func() {
		l, err := builder.Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(l.SetTestInfo("case01", "02", "gen_sine", "bounded")).To(Succeed())

		Expect(l.RecordPass("generator", "output", "case01", "02")).
			To(MatchError(testlog.ErrReservedWorker))
		Expect(l.RecordFail("comparison_method", "output", "case01", "02", "off")).
			To(MatchError(testlog.ErrReservedWorker))

		entry, ok := l.Entry("case01", "02")
		Expect(ok).To(BeTrue())
		Expect(entry.Generator).To(Equal("gen_sine"))
		Expect(entry.ComparisonMethod).To(Equal("bounded"))
		Expect(entry.Workers).To(BeEmpty())
	})

	It("should write canonical JSON", func() {
		l, err := builder.Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(l.RecordPass("w", "b", "case02", "01")).To(Succeed())
		Expect(l.RecordPass("w", "a", "case01", "01")).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(HavePrefix(`{"case01":{"01":{"w":{"rcc":{"commit_ids":["abc123"]`))
		Expect(string(data)).NotTo(ContainSubstring("\n  "))
	})

	It("should keep the latest verdict per port", func() {
		l, err := builder.Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(l.RecordPass("w", "out", "case01", "01")).To(Succeed())
		Expect(l.RecordFail("w", "out", "case01", "01", "sample differs")).
			To(Succeed())
		Expect(l.RecordPass("w", "aux", "case01", "01")).To(Succeed())

		e, ok := l.Entry("case01", "01")
		Expect(ok).To(BeTrue())
		run := e.Workers["w"]["rcc"]
		Expect(run.Result).To(Equal(map[string]string{
			"out": testlog.Failed,
			"aux": testlog.Passed,
		}))
		Expect(run.Reasons).To(HaveKeyWithValue("out", "sample differs"))
	})

	It("should keep results from earlier processes", func() {
		l, err := builder.Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(l.SetTestInfo("case03", "", "gen", "equal")).To(Succeed())
		Expect(l.RecordPass("w1", "out", "case03", "")).To(Succeed())

		again, err := builder.WithPlatform("hardware").Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(again.RecordFail("w1", "out", "case03", "", "bad")).To(Succeed())

		e, ok := again.Entry("case03", "")
		Expect(ok).To(BeTrue())
		Expect(e.Generator).To(Equal("gen"))
		Expect(e.ComparisonMethod).To(Equal("equal"))
		Expect(e.Workers["w1"]["rcc"].Result["out"]).To(Equal(testlog.Passed))
		Expect(e.Workers["w1"]["hardware"].Result["out"]).To(Equal(testlog.Failed))
	})

	It("should reject a corrupt log file", func() {
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())

		_, err := builder.Build()

		Expect(err).To(HaveOccurred())
	})

	It("should return an empty commit outside a repository", func() {
		Expect(testlog.GitCommit(filepath.Join(dir, "missing"))).To(BeEmpty())
	})
})
