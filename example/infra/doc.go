// Package infra implementa as portas de example/application:
//
//   - MongoRepository / MemoryRepository: persistência
//   - StreamPublisher / StreamConsumer: eventos em Redis Streams
package infra
