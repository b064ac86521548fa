package messaging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/fer-classifier/internal/classifier"
	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/presentation"
	"github.com/Brownie44l1/fer-classifier/internal/source"
)

// ClassifyRequest arrives on the request topic. Payload is a base64 encoded picture.
type ClassifyRequest struct {
	RequestID string `json:"requestId"`
	Source    string `json:"source,omitempty"`
	Payload   string `json:"payload"`
}

// ClassifyResponse is published to <response prefix><requestId>.
type ClassifyResponse struct {
	RequestID  string              `json:"requestId"`
	Label      emotion.Label       `json:"label"`
	Confidence float32             `json:"confidence"`
	Dialog     presentation.Dialog `json:"dialog"`
	Notice     string              `json:"notice,omitempty"`
	Error      string              `json:"error,omitempty"`
}

type Classifier interface {
	ClassifyBytes(ctx context.Context, src source.Kind, data []byte) (*classifier.Outcome, error)
}

type Publisher interface {
	Publish(topic string, payload []byte) error
}

type Handler struct {
	classifier     Classifier
	publisher      Publisher
	responsePrefix string
	logger         *zap.Logger
}

func NewHandler(c Classifier, p Publisher, responsePrefix string, logger *zap.Logger) *Handler {
	return &Handler{
		classifier:     c,
		publisher:      p,
		responsePrefix: responsePrefix,
		logger:         logger.Named("mqtt"),
	}
}

// Handle classifies one request message and publishes exactly one response.
// Requests that cannot be parsed at all are dropped since there is no
// request id to answer on.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var req ClassifyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.logger.Warn("dropping malformed request", zap.Error(err))
		return fmt.Errorf("parse request: %w", err)
	}
	if req.RequestID == "" {
		h.logger.Warn("dropping request without id")
		return errors.New("request id is required")
	}
	logger := h.logger.With(zap.String("request_id", req.RequestID))
	logger.Info("request received", zap.Int("payload_size", len(req.Payload)))

	resp := ClassifyResponse{RequestID: req.RequestID}
	src := source.Gallery
	if source.Kind(req.Source) == source.Camera {
		src = source.Camera
	}

	frame, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		resp.Label = emotion.Error
		resp.Error = "payload is not valid base64"
	} else {
		outcome, err := h.classifier.ClassifyBytes(ctx, src, frame)
		if outcome != nil {
			resp.Label = outcome.Label
			resp.Confidence = outcome.Confidence
			resp.Notice = outcome.Notice
		} else {
			resp.Label = emotion.Error
		}
		if err != nil {
			resp.Error = err.Error()
		}
	}
	resp.Dialog = presentation.ForLabel(resp.Label)

	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	topic := h.responsePrefix + req.RequestID
	if err := h.publisher.Publish(topic, body); err != nil {
		logger.Error("failed to publish response", zap.String("topic", topic), zap.Error(err))
		return err
	}
	logger.Info("response published", zap.String("topic", topic), zap.Stringer("label", resp.Label))
	return nil
}

type Options struct {
	Broker         string
	ClientID       string
	RequestTopic   string
	ResponsePrefix string
}

// Subscriber owns the broker connection. Requests are answered on the same
// connection they arrived on.
type Subscriber struct {
	client  mqtt.Client
	handler *Handler
	topic   string
	logger  *zap.Logger
}

// NewSubscriber builds a paho client with auto reconnect. The request topic is
// subscribed from the connect callback so a reconnect resubscribes.
func NewSubscriber(ctx context.Context, opts Options, c Classifier, logger *zap.Logger) *Subscriber {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "fer-worker-" + uuid.NewString()
	}
	s := &Subscriber{topic: opts.RequestTopic, logger: logger.Named("subscriber")}

	clientOpts := mqtt.NewClientOptions().AddBroker(opts.Broker).SetClientID(clientID)
	clientOpts.SetKeepAlive(30 * time.Second)
	clientOpts.SetPingTimeout(5 * time.Second)
	clientOpts.SetConnectTimeout(30 * time.Second)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", zap.Error(err))
	})
	clientOpts.SetOnConnectHandler(func(client mqtt.Client) {
		s.logger.Info("connected to MQTT", zap.String("broker", opts.Broker), zap.String("client_id", clientID))
		token := client.Subscribe(s.topic, 0, func(_ mqtt.Client, m mqtt.Message) {
			payload := append([]byte(nil), m.Payload()...)
			// Runs are serialized by the classifier.
			go func() {
				_ = s.handler.Handle(ctx, payload)
			}()
		})
		if token.Wait() && token.Error() != nil {
			s.logger.Error("subscribe failed", zap.String("topic", s.topic), zap.Error(token.Error()))
			return
		}
		s.logger.Info("subscribed", zap.String("topic", s.topic))
	})

	s.client = mqtt.NewClient(clientOpts)
	s.handler = NewHandler(c, NewPublisher(s.client), opts.ResponsePrefix, logger)
	return s
}

func (s *Subscriber) Start() error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return nil
}

func (s *Subscriber) Stop() {
	if s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)
}

type mqttPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

func NewPublisher(client mqtt.Client) Publisher {
	return &mqttPublisher{client: client, timeout: 5 * time.Second}
}

func (p *mqttPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}
