package verify

// MultiLog records every verdict in all of its logs. All logs are called
// even when one fails; the first error is returned.
type MultiLog []Log

// RecordPass records a passing verdict in every log.
func (m MultiLog) RecordPass(worker, port, testCase, testSubcase string) error {
	return m.each(func(l Log) error {
		return l.RecordPass(worker, port, testCase, testSubcase)
	})
}

// RecordFail records a failing verdict in every log.
func (m MultiLog) RecordFail(worker, port, testCase, testSubcase, reason string) error {
	return m.each(func(l Log) error {
		return l.RecordFail(worker, port, testCase, testSubcase, reason)
	})
}

// SetTestInfo forwards the test information to the logs that keep it.
func (m MultiLog) SetTestInfo(testCase, testSubcase, generator, method string) error {
	return m.each(func(l Log) error {
		info, ok := l.(TestInfoRecorder)
		if !ok {
			return nil
		}

		return info.SetTestInfo(testCase, testSubcase, generator, method)
	})
}

func (m MultiLog) each(f func(Log) error) error {
	var first error

	for _, l := range m {
		if err := f(l); err != nil && first == nil {
			first = err
		}
	}

	return first
}
