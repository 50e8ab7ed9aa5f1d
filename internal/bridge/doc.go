// Package bridge implements the PrusaLink to MQTT polling bridge.
//
// Every poll cycle runs a three-stage pipeline:
//
//	fetchAll → derive → publishDiff
//
// fetchAll reads status, job and info from the printer. derive turns them
// into a Snapshot with one Value per Signal, defaulting anything missing.
// publishDiff publishes, retained, each signal whose value differs from
// the previous cycle's snapshot.
//
// Connect registers a last will on job_progress_topic before opening the
// broker connection, so subscribers see "Not printing" if the bridge dies.
//
// # Usage
//
//	b, err := bridge.Connect(ctx, mqttClient, cfg, bridge.Options{Logger: log})
//	if err != nil {
//	    return err
//	}
//	go b.Run(ctx)
//	...
//	b.Stop()
package bridge
