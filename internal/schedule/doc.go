// Package schedule provides utilities for cron expression handling and
// recurring execution.
//
// Cron functions parse and validate cron expressions and compute upcoming run
// times. RunOnCron blocks and runs a function at every tick of an expression.
package schedule
