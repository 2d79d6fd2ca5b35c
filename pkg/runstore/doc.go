// Package runstore persists completed fits in Redis so they can be listed,
// re-summarized and re-plotted later without sampling again.
//
// # Layout
//
// Every key and channel is namespaced so several projects can share one Redis:
//
//	exofit:{namespace}:run:{id}               hash with run metadata and summaries
//	exofit:{namespace}:run:{id}:chain:{n}     JSON draws of chain n
//	exofit:{namespace}:run:{id}:observations  JSON log-space observations
//	exofit:{namespace}:runs                   ZSET of run IDs scored by creation time (ms)
//	exofit:{namespace}:run_events             Pub/Sub channel of RunEvent messages
//
// # Usage Example
//
//	client, err := runstore.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	run := runstore.NewRun("archive", res)
//	if err := client.SaveRun(ctx, run, res.Trace, res.Observations); err != nil {
//		return err
//	}
//
// A missing run is reported as redis.Nil; test for it with IsNotFound.
package runstore
