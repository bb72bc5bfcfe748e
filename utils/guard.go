package utils

// Guard runs a cleanup when a constructor returns early with an error. Use it as:
//
//	guard := NewGuard(func() { res.Close() })
//	defer guard.OnFail()
//	if err != nil { return nil, err }
//	guard.Success()
//	return res, nil
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a Guard that calls onFailCleanup from OnFail unless Success was called.
func NewGuard(onFailCleanup func()) *Guard {
	ret := &Guard{}
	ret.OnFail = func() {
		if !ret.success {
			onFailCleanup()
		}
	}
	return ret
}

// Success marks the guarded function as successful; OnFail becomes a no-op.
func (guard *Guard) Success() {
	guard.success = true
}
