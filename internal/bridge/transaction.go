// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bridge

import (
	"errors"
	"fmt"
)

// MaxRelayLength is the size of the slot 0 read window the bridge fills.
const MaxRelayLength = 7

var (
	ErrInvalidLength  = errors.New("bridge: relay length must be 1-7")
	ErrInvalidAddress = errors.New("bridge: relay target must be a 7-bit address")
)

// Direction of a passthrough transaction.
type Direction int

const (
	Write Direction = iota
	Read
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

// Transaction describes one relayed access to the secondary device. It is a
// value: building one touches no hardware. Master.Do runs it.
type Transaction struct {
	Target    uint8 // 7-bit secondary address
	Register  byte
	Direction Direction
	Length    int  // bytes to read; always 1 for writes
	Value     byte // data-out for writes
}

// ReadTx describes a read of length registers starting at reg.
func ReadTx(target uint8, reg byte, length int) Transaction {
	return Transaction{Target: target, Register: reg, Direction: Read, Length: length}
}

// WriteTx describes a single-byte write.
func WriteTx(target uint8, reg, value byte) Transaction {
	return Transaction{Target: target, Register: reg, Direction: Write, Length: 1, Value: value}
}

// Validate checks the transaction fits the bridge slot.
func (tx Transaction) Validate() error {
	if tx.Target > 0x7F {
		return fmt.Errorf("%w: 0x%02X", ErrInvalidAddress, tx.Target)
	}
	if tx.Length < 1 || tx.Length > MaxRelayLength {
		return fmt.Errorf("%w, got %d", ErrInvalidLength, tx.Length)
	}
	if tx.Direction == Write && tx.Length != 1 {
		return fmt.Errorf("%w: writes carry exactly one byte, got %d", ErrInvalidLength, tx.Length)
	}
	return nil
}

// AddressByte is the value for the slave-address register.
func (tx Transaction) AddressByte(regs Registers) byte {
	if tx.Direction == Read {
		return tx.Target | regs.ReadFlag
	}
	return tx.Target
}

// ControlByte is the value for the slave-control register; writing it
// latches the transaction.
func (tx Transaction) ControlByte(regs Registers) byte {
	return regs.SlaveEnableBit | byte(tx.Length)
}

type regWrite struct {
	reg   byte
	value byte
}

// steps returns the bridge writes in the order the hardware requires:
// address, register, optional data-out, control. Control must be last.
func (tx Transaction) steps(regs Registers) []regWrite {
	s := make([]regWrite, 0, 4)
	s = append(s,
		regWrite{regs.SlaveAddr, tx.AddressByte(regs)},
		regWrite{regs.SlaveReg, tx.Register},
	)
	if tx.Direction == Write {
		s = append(s, regWrite{regs.SlaveDataOut, tx.Value})
	}
	return append(s, regWrite{regs.SlaveCtrl, tx.ControlByte(regs)})
}

func (tx Transaction) String() string {
	if tx.Direction == Write {
		return fmt.Sprintf("write 0x%02X reg 0x%02X = 0x%02X", tx.Target, tx.Register, tx.Value)
	}
	return fmt.Sprintf("read 0x%02X reg 0x%02X len %d", tx.Target, tx.Register, tx.Length)
}
