// Package preflight checks that this machine and configuration can run
// pdfqa before the daemon starts or when the user runs 'pdfqa doctor'.
//
// Checks cover the data directory, free disk space, file descriptor
// limits, the daemon socket path, and backend credentials. Callers may add
// their own probes, such as opening the document store:
//
//	checker := preflight.New(preflight.WithProbe(storeProbe))
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
