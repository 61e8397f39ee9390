package session

import "github.com/hellodits/dee-POS-sub002/internal/core/domain"

// Intent is one entry of the desired membership. It is replayed as a join
// control message every time a transport is established.
type Intent struct {
	key     string
	join    domain.ControlType
	leave   domain.ControlType
	payload any
}

// StaffIntent asks for the branch staff room. The gateway derives the branch
// from the credential.
func StaffIntent(role domain.Role) Intent {
	return Intent{
		key:     "staff",
		join:    domain.ControlJoinStaff,
		leave:   domain.ControlLeaveStaff,
		payload: domain.JoinStaffPayload{Role: role},
	}
}

// OrderIntent asks to track one order.
func OrderIntent(orderNumber string) Intent {
	return Intent{
		key:     string(domain.OrderRoom(orderNumber)),
		join:    domain.ControlJoinCustomer,
		leave:   domain.ControlLeaveCustomer,
		payload: domain.CustomerPayload{OrderNumber: orderNumber},
	}
}

// Key identifies the intent in the desired set.
func (i Intent) Key() string {
	return i.key
}

func (i Intent) joinMessage() (domain.ControlMessage, error) {
	return domain.NewControl(i.join, i.payload)
}

func (i Intent) leaveMessage() (domain.ControlMessage, error) {
	return domain.NewControl(i.leave, i.payload)
}
