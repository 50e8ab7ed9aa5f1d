// Package prusalink reads printer state from the PrusaLink v1 REST API.
//
// Three documents are read, each with its own GET guarded by the
// X-Api-Key header:
//
//	/api/v1/info    printer identity (name, serial, nozzle diameter)
//	/api/v1/status  printer state, temperatures, optional job subsection
//	/api/v1/job     active job file and slicer metadata; 204 when idle
//
// # Usage
//
//	client := prusalink.New("192.168.1.20", apiKey, 750*time.Millisecond)
//	status, err := client.FetchStatus(ctx)
//	job, err := client.FetchJob(ctx) // job == nil, err == nil when idle
package prusalink
