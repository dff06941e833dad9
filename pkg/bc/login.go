package bc

import "fmt"

// Login - two phase handshake. Legacy login asks the camera for a nonce
// and optionally switches the connection to BC encryption, modern login sends
// digests salted with the nonce and gets DeviceInfo back.
// Empty password means no password.
func (c *Camera) Login(username, password string) (*DeviceInfo, error) {
	sub, err := c.conn.Subscribe(MsgIDLogin)
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	nonce, err := c.legacyLogin(sub, username, password)
	if err != nil {
		return nil, err
	}

	user := &LoginUser{
		Version:  XMLVersion,
		UserName: ModernDigest(username + nonce),
		Password: ModernDigest(password + nonce),
		UserVer:  1,
	}

	msg := &Message{
		Meta: Meta{
			MsgID:     MsgIDLogin,
			ChannelID: c.channel,
			MsgNum:    c.newMsgNum(),
			Class:     ClassModernOffset,
		},
		Payload: &Body{LoginUser: user, LoginNet: NewLoginNet()},
	}
	if err = sub.Send(msg); err != nil {
		return nil, err
	}

	reply, err := sub.Recv(c.timeout)
	if err != nil {
		return nil, err
	}

	if body := reply.Body(); body != nil && body.DeviceInfo != nil {
		c.mu.Lock()
		c.user = user
		c.aesKey = AESKey(nonce, password)
		c.deviceInfo = body.DeviceInfo
		c.mu.Unlock()

		c.loggedIn.Store(true)

		c.log.Debug().Msgf("[bc] login ok %s resolution=%s", c.conn.RemoteAddr(), body.DeviceInfo.Resolution.Name)
		return body.DeviceInfo, nil
	}

	// camera answers with an empty message on wrong credentials
	if reply.IsEmpty() {
		return nil, fmt.Errorf("%w: user %q", ErrAuthFailed, username)
	}

	return nil, &ReplyError{Reply: reply, Why: "no device info"}
}

func (c *Camera) legacyLogin(sub *Subscription, username, password string) (string, error) {
	legacy := &LegacyLogin{Username: LegacyDigest(username)}
	if password != "" {
		legacy.Password = LegacyDigest(password)
	} else {
		legacy.Password = EmptyLegacyPassword
	}

	msg := &Message{
		Meta: Meta{
			MsgID:        MsgIDLogin,
			ChannelID:    c.channel,
			MsgNum:       c.newMsgNum(),
			ResponseCode: ResponseCodeEncryptOffer,
			Class:        ClassLegacy,
		},
		Legacy: legacy,
	}
	if err := sub.Send(msg); err != nil {
		return "", err
	}

	reply, err := sub.Recv(c.timeout)
	if err != nil {
		return "", err
	}

	if reply.ResponseCode == ResponseCodeEncrypted {
		c.conn.SetEncrypted()
	}

	body := reply.Body()
	if body == nil || body.Encryption == nil || body.Encryption.Nonce == "" {
		return "", &ReplyError{Reply: reply, Why: "no nonce"}
	}

	return body.Encryption.Nonce, nil
}

// Logout - fire and forget, camera doesn't answer
func (c *Camera) Logout() {
	if !c.loggedIn.CompareAndSwap(true, false) {
		return
	}

	c.mu.Lock()
	user := *c.user
	c.mu.Unlock()
	user.UserVer = 0

	sub, err := c.conn.Subscribe(MsgIDLogout)
	if err != nil {
		c.log.Debug().Err(err).Msg("[bc] logout")
		return
	}
	defer sub.Close()

	msg := &Message{
		Meta: Meta{
			MsgID:     MsgIDLogout,
			ChannelID: c.channel,
			MsgNum:    c.newMsgNum(),
			Class:     ClassModernOffset,
		},
		Payload: &Body{LoginUser: &user},
	}
	if err = sub.Send(msg); err != nil {
		c.log.Debug().Err(err).Msg("[bc] logout")
	}
}
