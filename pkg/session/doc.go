/*
Package session hands out browser sessions to workflow runs.

A lease pairs a freshly opened session with exclusive access to a work key
(an account, a profile being contacted, a job being applied to). Access to a
key is serialized in-process with reference-counted locks and, when a
ports.DistributedLocker is configured, across replicas as well. The total
number of open sessions is bounded.
*/
package session
