/*
Package domain contains the core domain models for the Tendril automation engine.

It defines the failure kinds raised by element resolution and interaction,
the typed results returned to hosting services, and the lifecycle events
emitted while a workflow executes. This package is kept pure and free of
external dependencies like browsers, networks, or persistence.

# Key Entities

  - ResolutionFailure: every lookup strategy of a required selector missed.
  - ActionFailure: every activation technique was exhausted.
  - Job, Person, SubmissionResult: the typed outcome of a workflow run.
  - LifecycleHooks: callbacks for step and action observability.
*/
package domain
