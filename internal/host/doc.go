/*
Package host embeds the JavaScript program instance the bridge drives.

A Host wraps one goja runtime behind a mutex. It provides:

  - Eval: run a code string, capture its out stream and build an EvalResult
  - RunScript and Call: run fetched scripts and callbacks for the reload queue
  - Require, Evict and Cached: a CommonJS style module cache for process hosts
  - Install: expose Go functions to scripts as a global object

Program output (console.log, print, console.error) flows through a Printer
to the configured receivers, "console" and "repl" by default.
*/
package host
