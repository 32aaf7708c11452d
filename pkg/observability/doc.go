/*
Package observability turns engine and executor lifecycle events into
Prometheus metrics and structured audit logs.

Both are plain domain.LifecycleHooks values, so a host combines them with
LifecycleHooks.Merge and hands the result to the graph and action options.
*/
package observability
