package verify

import "regexp"

var testIDPattern = regexp.MustCompile(`case(\d+)\.(\d+)`)

// ParseTestID splits a test name into test case and subcase.
//
//	ParseTestID("test_case03.12_rcc") // "case03", "12"
//	ParseTestID("smoke")              // "smoke", ""
func ParseTestID(id string) (testCase, testSubcase string) {
	m := testIDPattern.FindStringSubmatch(id)
	if m == nil {
		return id, ""
	}

	return "case" + m[1], m[2]
}
