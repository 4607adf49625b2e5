// Package notifier sends plain-text email through the platform's emailSimple
// standard action, using the same session as deployments.
package notifier
