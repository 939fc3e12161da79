/*
Package rabbitmq provides a RabbitMQ export adapter for the event bus.
It maps exported events to AMQP publishes on a topic exchange, includes an auto-reconnect
publisher, and supports optional header propagation via a bus.HeaderPropagator.
*/
package rabbitmq
