// Command hashpw 为 admin.password_hash 配置项生成 bcrypt 哈希。
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"orbitx-go/pkg/hash"
)

func main() {
	password := strings.Join(os.Args[1:], " ")
	if password == "" {
		// 未通过参数传入时从标准输入读取，避免密码留在 shell 历史中
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>  (or pipe the password on stdin)")
		os.Exit(2)
	}
	h, err := hash.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}
	fmt.Println(h)
}
