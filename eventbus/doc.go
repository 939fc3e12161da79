/*
Package eventbus provides the in-process event bus: per-key and wildcard listeners,
priority ordering, one-shot listeners, and strictly sequential dispatch that stops at
the first handler error. Mirror attaches an export tap that hands every fired event
to an EnvelopeExporter.
*/
package eventbus
