/*
Package worker provides the two long-lived stages of the matrix pipeline: a Producer
that generates matrix pairs and a Consumer that multiplies them and writes the products.

# Overview

The stages share three things, all passed in at construction time:
- a channel.Channel carrying Pair messages followed by exactly one End message
- a shutdown.Signal raised once by whatever decides the run is over
- optionally a metrics.Metrics and a zap.Logger

# Producer

	RUNNING --(signal raised / ctx done / panic)--> STOPPING --(End queued)--> TERMINATED

The signal is checked at the top of every iteration, never in the middle of
generating a pair. Each iteration generates A and B, queues them, and waits
Interval. The wait returns early when the signal is raised, so the producer
reaches TERMINATED within one interval of the trigger. End is queued from a
deferred cleanup and therefore also on the interrupted and panicking paths.

# Consumer

	RUNNING --(End received / signal raised and channel empty / ctx done)--> TERMINATED

Each receive waits at most PollTimeout. End is authoritative: the consumer stops
on it regardless of the signal. The signal-and-empty condition is only evaluated
after a receive timed out, so a pair queued just before End is never skipped.
Pairs whose shapes cannot be multiplied are logged and dropped; a failing sink
stops the consumer and raises the signal so the producer stops as well.

# Ordering

Products are written synchronously, one at a time, in the order pairs were
dequeued. With a single consumer and a FIFO channel that is also the order in
which they were generated.

# Usage Examples

	ch := channel.New()
	sig := shutdown.New()

	producer, _ := worker.NewProducer(worker.DefaultProducerConfig(3),
		matrix.NewRandomGenerator(matrix.DefaultMaxValue, 1), ch, sig)
	consumer, _ := worker.NewConsumer(worker.DefaultConsumerConfig(), ch, sig,
		sink.FileOpener("multiplication_results.txt", sink.FileOptions{}))

	go producer.Run(ctx)
	go consumer.Run(ctx)

	sig.Set("operator")
	<-producer.Done()
	<-consumer.Done()

Most callers should use pipeline.Pipeline, which wires and joins both stages.
*/
package worker
