// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [CaptureSource]: Lists sources and opens live capture streams
//   - [SegmentEncoder]: Opens one encoding pipeline per segment
//   - [DiskProbe]: Reports free space on the buffer volume
//   - [IndexRepository]: Persists and loads rolling buffer metadata
//   - [BatteryProbe], [LoadProbe]: Observe power and system load
//   - [PermissionChecker], [Notifier], [SettingsProvider]: User-facing collaborators
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) and the buffer (internal/buffer)
// depend only on these interfaces. Infrastructure adapters
// (internal/adapters) implement them with concrete implementations
// (ffmpeg, sysfs, statfs, zerolog, etc.).
//
// This separation enables:
//   - Testing the state machine with fake capture, encoders and clocks
//   - Swapping capture or encoding backends without changing recording logic
//   - Clear boundaries and dependency direction
package ports
