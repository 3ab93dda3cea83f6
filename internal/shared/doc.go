// Package shared holds helpers used by more than one package of the pupil
// transport pipeline. Its testutil subpackage provides a capturing slog
// handler and writers for semicolon-delimited CSV fixtures.
//
// Example usage:
//
//	func TestLoad(t *testing.T) {
//	    dir := t.TempDir()
//	    testutil.WriteTransportCSV(t, dir, "a.csv", testutil.MandatoryHeader("LEEFTIJD_4"), rows)
//	    logger, logs := testutil.NewTestLogger(t)
//	    ...
//	}
package shared
