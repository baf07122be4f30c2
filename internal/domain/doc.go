// Package domain contains the core domain entities and value objects for rollcam.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (capture, encoding, file system,
// logging) and contains only the recording model and its invariants.
//
// # Entities
//
//   - [Segment]: One fixed-duration slice of the continuous recording
//   - [BufferIndex]: Persistent metadata of the rolling buffer for crash recovery
//   - [Alert]: A typed user-facing notification
//   - [Quality]: A rung on the capture quality ladder
//   - [Settings]: User-configured knobs read by the core at decision points
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
