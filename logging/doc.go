/*
Package logging implements application logging and access logging of the
gateway.

The application log is the logrus standard logger, optionally prefixed, so
that application entries can be told apart from access log entries when
both go to the same output. Components receive a Logger, which tests can
replace with loggingtest.Logger.

The access log is printed in the Apache combined format, extended with the
duration in milliseconds, the requested host, the route id and the request
id, or as JSON.
*/
package logging
