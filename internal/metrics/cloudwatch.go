package metrics

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace                = "MelodyBridge/Bridge"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      *cloudwatch.Client
	enabled     bool
	environment string
}

// NewClient creates a new CloudWatch metrics client
func NewClient(ctx context.Context, environment string) (*Client, error) {
	// Only enable in production
	if environment != "production" {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{
			enabled:     false,
			environment: environment,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false}, nil
	}

	client := cloudwatch.NewFromConfig(cfg)
	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)

	return &Client{
		client:      client,
		enabled:     true,
		environment: environment,
	}, nil
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if m == nil || !m.enabled {
		return
	}

	go func() {
		metricName := "APIRequests"
		if statusCode >= httpStatusServerError {
			metricName = "APIErrors"
		}

		dimensions := m.dimensions("Endpoint", endpoint)
		if err := m.putMetric(metricName, 1, types.StandardUnitCount, dimensions); err != nil {
			log.Printf("Failed to record %s metric: %v", metricName, err)
		}

		latencyMs := float64(duration.Milliseconds())
		if err := m.putMetric("APILatency", latencyMs, types.StandardUnitMilliseconds, dimensions); err != nil {
			log.Printf("Failed to record APILatency metric: %v", err)
		}
	}()
}

// RecordDatagram counts inbound datagrams by kind; rejected ones go to DatagramsDropped
func (m *Client) RecordDatagram(kind string, accepted bool, size int) {
	if m == nil || !m.enabled {
		return
	}

	go func() {
		metricName := "DatagramsAccepted"
		if !accepted {
			metricName = "DatagramsDropped"
		}

		dimensions := m.dimensions("Kind", kind)
		if err := m.putMetric(metricName, 1, types.StandardUnitCount, dimensions); err != nil {
			log.Printf("Failed to record %s metric: %v", metricName, err)
		}
		if err := m.putMetric("DatagramBytes", float64(size), types.StandardUnitBytes, dimensions); err != nil {
			log.Printf("Failed to record DatagramBytes metric: %v", err)
		}
	}()
}

// RecordTokenUsage records model token usage
func (m *Client) RecordTokenUsage(model string, totalTokens, inputTokens, outputTokens int) {
	if m == nil || !m.enabled {
		return
	}

	go func() {
		dimensions := m.dimensions("Model", model)
		for name, value := range map[string]int{
			"LLMTokens/Total":  totalTokens,
			"LLMTokens/Input":  inputTokens,
			"LLMTokens/Output": outputTokens,
		} {
			if err := m.putMetric(name, float64(value), types.StandardUnitCount, dimensions); err != nil {
				log.Printf("Failed to record %s metric: %v", name, err)
			}
		}
	}()
}

// RecordCompletionDuration records completion duration by source (http or udp)
func (m *Client) RecordCompletionDuration(source string, duration time.Duration, success bool) {
	if m == nil || !m.enabled {
		return
	}

	go func() {
		dimensions := append(m.dimensions("Source", source), types.Dimension{
			Name:  aws.String("Success"),
			Value: aws.String(boolToString(success)),
		})

		durationMs := float64(duration.Milliseconds())
		if err := m.putMetric("CompletionDuration", durationMs, types.StandardUnitMilliseconds, dimensions); err != nil {
			log.Printf("Failed to record CompletionDuration metric: %v", err)
		}
	}()
}

func (m *Client) dimensions(name, value string) []types.Dimension {
	return []types.Dimension{
		{
			Name:  aws.String(name),
			Value: aws.String(value),
		},
		{
			Name:  aws.String("Environment"),
			Value: aws.String(m.environment),
		},
	}
}

// putMetric sends a metric to CloudWatch
func (m *Client) putMetric(
	metricName string,
	value float64,
	unit types.StandardUnit,
	dimensions []types.Dimension,
) error {
	if !m.enabled || m.client == nil {
		return nil
	}

	timeout := time.Duration(cloudwatchTimeoutSeconds) * time.Second
	cwCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dimensions,
			},
		},
	})

	return err
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
