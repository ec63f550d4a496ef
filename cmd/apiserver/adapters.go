package main

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/EduLoan-Engine/internal/bootstrap"
	"github.com/turtacn/EduLoan-Engine/internal/interfaces/http/handlers"
)

// healthCheckers adapts every open connection to a readiness check.
func healthCheckers(infra *bootstrap.Infrastructure) []handlers.HealthChecker {
	checks := []handlers.HealthChecker{
		handlers.CheckFunc{Component: "postgres", Fn: infra.DB.HealthCheck},
		handlers.CheckFunc{Component: "redis", Fn: infra.Redis.HealthCheck},
	}
	if infra.Producer != nil && len(infra.Config.Kafka.Brokers) > 0 {
		broker := infra.Config.Kafka.Brokers[0]
		checks = append(checks, handlers.CheckFunc{Component: "kafka", Fn: func(ctx context.Context) error {
			conn, err := kafka.DialContext(ctx, "tcp", broker)
			if err != nil {
				return err
			}
			return conn.Close()
		}})
	}
	return checks
}

//Personal.AI order the ending
