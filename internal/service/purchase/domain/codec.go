// internal/service/purchase/domain/codec.go
package domain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// sessionEnvelope 是会话在存储中的序列化形式。
type sessionEnvelope struct {
	State string          `json:"state"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MarshalSession 把会话状态编码为带判别标签的 JSON 封皮，
// 以便在 Redis 里往返。
func MarshalSession(s SessionState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal session data")
	}
	return json.Marshal(sessionEnvelope{State: StateName(s), Data: data})
}

// UnmarshalSession 还原 MarshalSession 的结果。
// 未知的状态名是错误：说明存储里混入了其他进程的数据。
func UnmarshalSession(raw []byte) (SessionState, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal session envelope")
	}

	var state SessionState
	switch env.State {
	case "idle":
		state = &Idle{}
	case "choosing_quantity":
		state = &ChoosingQuantity{}
	case "choosing_price_tier":
		state = &ChoosingPriceTier{}
	case "waiting_promo_code":
		state = &WaitingPromoCode{}
	case "waiting_payment_confirm":
		state = &WaitingPaymentConfirm{}
	case "waiting_payment_proof":
		state = &WaitingPaymentProof{}
	case "on_review":
		state = &OnReview{}
	default:
		return nil, errors.Errorf("unknown session state %q", env.State)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, state); err != nil {
			return nil, errors.Wrapf(err, "unmarshal session data for %q", env.State)
		}
	}
	return deref(state), nil
}

// deref 存储的是指针以便反序列化，对外统一还原成值类型。
func deref(s SessionState) SessionState {
	switch v := s.(type) {
	case *Idle:
		return *v
	case *ChoosingQuantity:
		return *v
	case *ChoosingPriceTier:
		return *v
	case *WaitingPromoCode:
		return *v
	case *WaitingPaymentConfirm:
		return *v
	case *WaitingPaymentProof:
		return *v
	case *OnReview:
		return *v
	}
	return s
}
