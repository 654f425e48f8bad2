package verify

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/streamcheck/codec"
	"github.com/sarchlab/streamcheck/compare"
	"github.com/sarchlab/streamcheck/dispatch"
	"github.com/sarchlab/streamcheck/msg"
)

// doubler multiplies every sample by two.
type doubler struct {
	dispatch.Base
	resets int
}

func newDoubler() *doubler {
	return &doubler{Base: dispatch.Base{
		InputNames:  []string{"input"},
		OutputNames: []string{"output"},
	}}
}

func (d *doubler) Reset() {
	d.resets++
}

func (d *doubler) Sample(in dispatch.Args) dispatch.Outputs {
	m := in[0].Clone()
	for i := range m.Samples {
		m.Samples[i] *= 2
	}

	return d.Emit(0, m)
}

// splitter copies its input to two output ports.
type splitter struct {
	dispatch.Base
}

func (s *splitter) Reset() {}

func (s *splitter) Sample(in dispatch.Args) dispatch.Outputs {
	out := s.NewOutputs()
	out[0] = append(out[0], in[0].Clone())
	out[1] = append(out[1], in[0].Clone())

	return out
}

type hookRecorder struct {
	items []any
}

func (h *hookRecorder) Func(ctx sim.HookCtx) {
	h.items = append(h.items, ctx.Item)
}

func (h *hookRecorder) regenerations() int {
	n := 0
	for _, item := range h.items {
		if _, ok := item.(Regeneration); ok {
			n++
		}
	}

	return n
}

var _ = Describe("ReferencePath", func() {
	DescribeTable("should replace the output suffix",
		func(output, port, want string) {
			Expect(ReferencePath(output, port)).To(Equal(want))
		},
		Entry("output with extension",
			"gen/case01.02.output.bin", "out", "gen/case01.02.out.reference"),
		Entry("plain extension",
			"gen/case01.02.bin", "out", "gen/case01.02.out.reference"),
		Entry("no output marker",
			"/tmp/capture.dat", "b", "/tmp/capture.b.reference"),
		Entry("port named file",
			"gen/case01.02.out.bin", "out", "gen/case01.02.out.reference"),
	)
})

var _ = Describe("ParseTestID", func() {
	DescribeTable("should split case and subcase",
		func(id, testCase, testSubcase string) {
			c, s := ParseTestID(id)
			Expect(c).To(Equal(testCase))
			Expect(s).To(Equal(testSubcase))
		},
		Entry("plain", "case01.02", "case01", "02"),
		Entry("embedded", "test_case12.345_rcc", "case12", "345"),
		Entry("no pattern", "smoke", "smoke", ""),
		Entry("missing subcase", "case01", "case01", ""),
	)
})

var _ = Describe("Builder", func() {
	It("should reject a missing implementation", func() {
		_, err := Builder{}.Build()

		Expect(err).To(HaveOccurred())
	})

	It("should reject mismatched input protocols", func() {
		_, err := Builder{}.
			WithImplementation(newDoubler()).
			WithInputProtocols("short_timed_sample", "short_timed_sample").
			WithOutputProtocols("short_timed_sample").
			WithComparisonMethods("equal").
			Build()

		Expect(err).To(MatchError(ContainSubstring("2 input protocols")))
	})

	It("should reject mismatched output protocols", func() {
		_, err := Builder{}.
			WithImplementation(newDoubler()).
			WithInputProtocols("short_timed_sample").
			WithComparisonMethods("equal").
			Build()

		Expect(err).To(HaveOccurred())
	})

	It("should reject an unknown comparison method", func() {
		_, err := Builder{}.
			WithImplementation(newDoubler()).
			WithInputProtocols("short_timed_sample").
			WithOutputProtocols("short_timed_sample").
			WithComparisonMethods("fuzzy").
			Build()

		Expect(err).To(MatchError(compare.ErrUnknownMethod))
	})

	It("should reject a wrong number of comparators", func() {
		_, err := Builder{}.
			WithImplementation(newDoubler()).
			WithInputProtocols("short_timed_sample").
			WithOutputProtocols("short_timed_sample").
			WithComparators(compare.NewEqual(), compare.NewEqual()).
			Build()

		Expect(err).To(HaveOccurred())
	})

	It("should reject a bad ignored pattern", func() {
		_, err := Builder{}.
			WithImplementation(newDoubler()).
			WithInputProtocols("short_timed_sample").
			WithOutputProtocols("short_timed_sample").
			WithComparisonMethods("equal").
			WithIgnoredPatterns("[").
			Build()

		Expect(err).To(HaveOccurred())
	})

	It("should create one comparator per output port", func() {
		v, err := Builder{}.
			WithImplementation(newDoubler()).
			WithInputProtocols("short_timed_sample").
			WithOutputProtocols("short_timed_sample").
			WithComparisonMethods("bounded").
			Build()
		Expect(err).NotTo(HaveOccurred())

		c, err := v.Comparator("output")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Name()).To(Equal(compare.MethodBounded))

		_, err = v.Comparator("other")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Verifier with mocked collaborators", func() {
	var (
		mockCtrl  *gomock.Controller
		codecMock *MockCodec
		logMock   *MockLog
		report    *bytes.Buffer
		dir       string
		impl      *doubler
		v         *Verifier
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		codecMock = NewMockCodec(mockCtrl)
		logMock = NewMockLog(mockCtrl)
		report = &bytes.Buffer{}
		dir = GinkgoT().TempDir()
		impl = newDoubler()

		var err error
		v, err = Builder{}.
			WithImplementation(impl).
			WithInputProtocols("short_timed_sample").
			WithOutputProtocols("long_timed_sample").
			WithComparisonMethods("equal").
			WithCodec(codecMock).
			WithLog(logMock).
			WithWorker("my_worker").
			WithReportWriter(report).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should regenerate a missing reference and record a pass", func() {
		input := filepath.Join(dir, "input.bin")
		output := filepath.Join(dir, "case01.02.output.bin")
		ref := filepath.Join(dir, "case01.02.output.reference")

		gomock.InOrder(
			codecMock.EXPECT().
				Read(input, "short_timed_sample").
				Return([]msg.Message{msg.NewTime(1), msg.NewSamples(1, 2)}, nil),
			codecMock.EXPECT().
				Write(ref, "long_timed_sample", []msg.Message{
					msg.NewTime(1), msg.NewSamples(2, 4),
				}).
				Return(nil),
			codecMock.EXPECT().
				Read(ref, "long_timed_sample").
				Return([]msg.Message{msg.NewTime(1), msg.NewSamples(2, 4)}, nil),
			codecMock.EXPECT().
				Read(output, "long_timed_sample").
				Return([]msg.Message{msg.NewTime(1), msg.NewSamples(2, 4)}, nil),
			logMock.EXPECT().
				RecordPass("my_worker", "output", "case01", "02").
				Return(nil),
		)

		passed, err := v.Verify("case01.02", []string{input}, output, "")

		Expect(err).NotTo(HaveOccurred())
		Expect(passed).To(BeTrue())
		Expect(impl.resets).To(Equal(1))
		Expect(report.Len()).To(BeZero())
	})

	It("should record a failure and print the report", func() {
		input := filepath.Join(dir, "input.bin")
		output := filepath.Join(dir, "case03.01.output.bin")
		ref := filepath.Join(dir, "case03.01.output.reference")

		codecMock.EXPECT().
			Read(input, gomock.Any()).
			Return([]msg.Message{msg.NewSamples(1, 2, 3)}, nil)
		codecMock.EXPECT().Write(ref, gomock.Any(), gomock.Any()).Return(nil)
		codecMock.EXPECT().
			Read(ref, gomock.Any()).
			Return([]msg.Message{msg.NewSamples(2, 4, 6)}, nil)
		codecMock.EXPECT().
			Read(output, gomock.Any()).
			Return([]msg.Message{msg.NewSamples(2, 5, 6)}, nil)
		logMock.EXPECT().
			RecordFail("my_worker", "output", "case03", "01",
				gomock.Any()).
			Return(nil)

		passed, err := v.Verify("case03.01", []string{input}, output, "output")

		Expect(err).NotTo(HaveOccurred())
		Expect(passed).To(BeFalse())
		Expect(report.String()).To(ContainSubstring("FAILED: case03.01 port output"))
		Expect(report.String()).To(ContainSubstring("Reason:"))
	})

	It("should not record when the implementation output cannot be read", func() {
		input := filepath.Join(dir, "input.bin")
		output := filepath.Join(dir, "case01.01.bin")

		codecMock.EXPECT().Read(input, gomock.Any()).Return(nil, nil)
		codecMock.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil)
		codecMock.EXPECT().
			Read(ReferencePath(output, "output"), gomock.Any()).
			Return([]msg.Message{}, nil)
		codecMock.EXPECT().
			Read(output, gomock.Any()).
			Return(nil, os.ErrNotExist)

		_, err := v.Verify("case01.01", []string{input}, output, "")

		Expect(err).To(MatchError(os.ErrNotExist))
	})

	It("should reject an unknown port", func() {
		_, err := v.Verify("case01.01", nil, filepath.Join(dir, "x.bin"), "nope")

		Expect(err).To(HaveOccurred())
	})

	It("should reject a wrong number of input files", func() {
		err := v.Regenerate(nil, filepath.Join(dir, "x.bin"), "")

		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Verifier on the file system", func() {
	var (
		root   string
		gen    string
		input  string
		output string
		hooks  *hookRecorder
		v      *Verifier
		past   time.Time
	)

	writeFile := func(path string, msgs ...msg.Message) {
		Expect(codec.WriteFile(path, "short_timed_sample", msgs)).To(Succeed())
		Expect(os.Chtimes(path, past, past)).To(Succeed())
	}

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		gen = filepath.Join(root, "case01", "gen")
		Expect(os.MkdirAll(gen, 0o755)).To(Succeed())

		past = time.Now().Add(-time.Hour)
		input = filepath.Join(gen, "case01.02.input.bin")
		output = filepath.Join(gen, "case01.02.output.bin")
		writeFile(input, msg.NewSamples(1, 2, 3))
		writeFile(output, msg.NewSamples(2, 4, 6))

		var err error
		v, err = Builder{}.
			WithImplementation(newDoubler()).
			WithInputProtocols("short_timed_sample").
			WithOutputProtocols("short_timed_sample").
			WithComparisonMethods("equal").
			WithReportWriter(&bytes.Buffer{}).
			Build()
		Expect(err).NotTo(HaveOccurred())

		hooks = &hookRecorder{}
		v.AcceptHook(hooks)
	})

	It("should regenerate only when the cache is stale", func() {
		passed, err := v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(passed).To(BeTrue())
		Expect(hooks.regenerations()).To(Equal(1))
		Expect(ReferencePath(output, "output")).To(BeAnExistingFile())

		passed, err = v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(passed).To(BeTrue())
		Expect(hooks.regenerations()).To(Equal(1))
	})

	It("should regenerate after a file in the ancestor scope is touched", func() {
		definition := filepath.Join(root, "case01", "generate.py")
		Expect(os.WriteFile(definition, []byte("x"), 0o644)).To(Succeed())
		Expect(os.Chtimes(definition, past, past)).To(Succeed())

		_, err := v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(hooks.regenerations()).To(Equal(1))

		future := time.Now().Add(time.Hour)
		Expect(os.Chtimes(definition, future, future)).To(Succeed())

		_, err = v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(hooks.regenerations()).To(Equal(2))
	})

	It("should regenerate when the captured output is newer", func() {
		_, err := v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())

		future := time.Now().Add(time.Hour)
		Expect(os.Chtimes(output, future, future)).To(Succeed())

		_, err = v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(hooks.regenerations()).To(Equal(2))
	})

	It("should ignore files outside the scope and reference files", func() {
		_, err := v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())

		future := time.Now().Add(time.Hour)
		outside := filepath.Join(root, "unrelated.txt")
		Expect(os.WriteFile(outside, []byte("x"), 0o644)).To(Succeed())
		Expect(os.Chtimes(outside, future, future)).To(Succeed())

		other := filepath.Join(gen, "case01.03.output.reference")
		Expect(os.WriteFile(other, []byte("x"), 0o644)).To(Succeed())
		Expect(os.Chtimes(other, future, future)).To(Succeed())

		_, err = v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(hooks.regenerations()).To(Equal(1))
	})

	It("should report verdicts through hooks", func() {
		_, err := v.Verify("case01.02", []string{input}, output, "")
		Expect(err).NotTo(HaveOccurred())

		var verdicts []Verdict
		for _, item := range hooks.items {
			if verdict, ok := item.(Verdict); ok {
				verdicts = append(verdicts, verdict)
			}
		}

		Expect(verdicts).To(HaveLen(1))
		Expect(verdicts[0].TestCase).To(Equal("case01"))
		Expect(verdicts[0].Method).To(Equal(compare.MethodEqual))
		Expect(verdicts[0].Regenerated).To(BeTrue())
	})
})

var _ = Describe("Multiple output ports", func() {
	It("should require a port selection", func() {
		impl := &splitter{Base: dispatch.Base{
			InputNames:  []string{"in"},
			OutputNames: []string{"a", "b"},
		}}
		v, err := Builder{}.
			WithImplementation(impl).
			WithInputProtocols("double_timed_sample").
			WithOutputProtocols("double_timed_sample", "double_timed_sample").
			WithComparisonMethods("equal", "relative").
			Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = v.Verify("case01.01", nil, "x.bin", "")

		Expect(err).To(MatchError(ContainSubstring("port must be selected")))
	})

	It("should write one reference per output port", func() {
		dir := GinkgoT().TempDir()
		input := filepath.Join(dir, "in.bin")
		output := filepath.Join(dir, "case01.01.output.bin")
		Expect(codec.WriteFile(input, "double_timed_sample",
			[]msg.Message{msg.NewSamples(0.5)})).To(Succeed())
		Expect(codec.WriteFile(output, "double_timed_sample",
			[]msg.Message{msg.NewSamples(0.5)})).To(Succeed())

		impl := &splitter{Base: dispatch.Base{
			InputNames:  []string{"in"},
			OutputNames: []string{"a", "b"},
		}}
		v, err := Builder{}.
			WithImplementation(impl).
			WithInputProtocols("double_timed_sample").
			WithOutputProtocols("double_timed_sample", "double_timed_sample").
			WithComparisonMethods("equal", "relative").
			Build()
		Expect(err).NotTo(HaveOccurred())

		passed, err := v.Verify("case01.01", []string{input}, output, "b")

		Expect(err).NotTo(HaveOccurred())
		Expect(passed).To(BeTrue())
		Expect(ReferencePath(output, "a")).To(BeAnExistingFile())
		Expect(ReferencePath(output, "b")).To(BeAnExistingFile())
	})

	It("should reuse references when each port has its own file", func() {
		gen := filepath.Join(GinkgoT().TempDir(), "case01", "gen")
		Expect(os.MkdirAll(gen, 0o755)).To(Succeed())
		input := filepath.Join(gen, "case01.01.in.bin")
		outA := filepath.Join(gen, "case01.01.a.bin")
		outB := filepath.Join(gen, "case01.01.b.bin")
		for _, path := range []string{input, outA, outB} {
			Expect(codec.WriteFile(path, "double_timed_sample",
				[]msg.Message{msg.NewSamples(0.5)})).To(Succeed())
		}

		impl := &splitter{Base: dispatch.Base{
			InputNames:  []string{"in"},
			OutputNames: []string{"a", "b"},
		}}
		v, err := Builder{}.
			WithImplementation(impl).
			WithInputProtocols("double_timed_sample").
			WithOutputProtocols("double_timed_sample", "double_timed_sample").
			WithComparisonMethods("equal", "equal").
			Build()
		Expect(err).NotTo(HaveOccurred())
		hooks := &hookRecorder{}
		v.AcceptHook(hooks)

		passed, err := v.Verify("case01.01", []string{input}, outB, "b")
		Expect(err).NotTo(HaveOccurred())
		Expect(passed).To(BeTrue())
		Expect(filepath.Join(gen, "case01.01.a.reference")).To(BeAnExistingFile())

		passed, err = v.Verify("case01.01", []string{input}, outA, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(passed).To(BeTrue())
		Expect(hooks.regenerations()).To(Equal(1))
	})
})

type infoLog struct {
	passes []string
	info   []string
}

func (l *infoLog) RecordPass(worker, port, testCase, testSubcase string) error {
	l.passes = append(l.passes, testCase+"."+testSubcase)
	return nil
}

func (l *infoLog) RecordFail(worker, port, testCase, testSubcase, reason string) error {
	return os.ErrInvalid
}

func (l *infoLog) SetTestInfo(testCase, testSubcase, generator, method string) error {
	l.info = append(l.info, generator+"/"+method)
	return nil
}

var _ = Describe("MultiLog", func() {
	var (
		mockCtrl *gomock.Controller
		logMock  *MockLog
		info     *infoLog
		multi    MultiLog
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		logMock = NewMockLog(mockCtrl)
		info = &infoLog{}
		multi = MultiLog{logMock, info}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record in every log", func() {
		logMock.EXPECT().RecordPass("w", "p", "case01", "02").Return(nil)

		Expect(multi.RecordPass("w", "p", "case01", "02")).To(Succeed())
		Expect(info.passes).To(Equal([]string{"case01.02"}))
	})

	It("should call every log and return the first error", func() {
		logMock.EXPECT().RecordFail("w", "p", "c", "s", "r").Return(nil)

		err := multi.RecordFail("w", "p", "c", "s", "r")

		Expect(err).To(MatchError(os.ErrInvalid))
	})

	It("should forward test information to logs that keep it", func() {
		Expect(multi.SetTestInfo("c", "s", "gen", "equal")).To(Succeed())
		Expect(info.info).To(Equal([]string{"gen/equal"}))
	})
})
